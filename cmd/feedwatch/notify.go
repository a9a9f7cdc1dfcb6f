package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"feedwatch/internal/notify"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Mail the count of today's new posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDispatch(cmd, func() []notify.Request {
			return []notify.Request{notify.ScheduledDigest(mailSink())}
		})
	},
}

var digestManualCmd = &cobra.Command{
	Use:   "digest-manual",
	Short: "Mail the latest snapshot now, then push the same count to WeChat",
	Long: `Mail the post count of the rolling snapshot regardless of the email flag,
then push it through the WeChat worker when the wechat flag is on.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDispatch(cmd, func() []notify.Request {
			return []notify.Request{
				notify.ManualDigest(mailSink()),
				notify.ManualPush(wechatSink()),
			}
		})
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the count of today's new posts through the WeChat worker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDispatch(cmd, func() []notify.Request {
			return []notify.Request{notify.Push(wechatSink())}
		})
	},
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Send the count of today's new posts to a Telegram chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDispatch(cmd, func() []notify.Request {
			return []notify.Request{notify.Push(telegramSink())}
		})
	},
}

func init() {
	rootCmd.AddCommand(digestCmd, digestManualCmd, pushCmd, telegramCmd)
}

// runDispatch runs every request in order. A failing sink does not stop the
// ones after it; the failures are joined.
func runDispatch(cmd *cobra.Command, requests func() []notify.Request) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	d := notify.NewDispatcher(a.flags, a.snapshots, a.loc, cfg.SiteURL, logger)
	var errs []error
	for _, req := range requests() {
		out, err := d.Dispatch(cmd.Context(), req)
		if err != nil {
			color.New(color.FgRed).Fprintf(cmd.OutOrStdout(), "✗ %s: %v\n", req.Sink.Name(), err)
			errs = append(errs, err)
			continue
		}
		printOutcome(cmd.OutOrStdout(), req.Sink.Name(), out)
	}
	return errors.Join(errs...)
}

func printOutcome(w io.Writer, sink string, out notify.Outcome) {
	if out.Sent {
		color.New(color.FgGreen).Fprintf(w, "✓ %s: sent (%d posts)\n", sink, out.Posts)
		return
	}
	fmt.Fprintf(w, "- %s: skipped (%s)\n", sink, out.Reason)
}

func mailSink() *notify.MailSink {
	return notify.NewMailSink(notify.MailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.QQMail,
		Password: cfg.QQAuthCode,
		To:       cfg.MailRecipient(),
	}, logger)
}

func wechatSink() *notify.WechatSink {
	return notify.NewWechatSink(notify.WechatConfig{
		WorkerURL: cfg.WXWorkerURL,
		Token:     cfg.WXToken,
	}, nil, logger)
}

func telegramSink() *notify.TelegramSink {
	return notify.NewTelegramSink(notify.TelegramConfig{
		Token:  cfg.TelegramBotToken,
		ChatID: cfg.TelegramChatID,
	}, logger)
}
