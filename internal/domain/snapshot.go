package domain

const (
	// MaxPostsPerEntity caps the posts kept for one profile per run.
	MaxPostsPerEntity = 3

	// UnknownTime is stored when no timestamp could be resolved for a post.
	UnknownTime = "未知时间"

	// UnknownName is used when no display name could be resolved for a profile.
	UnknownName = "未知用户"
)

// Post is one extracted item from a profile page.
type Post struct {
	Title string `json:"title"`
	// Time is the raw timestamp text as shown by the source, e.g. "12-05 10:30".
	Time string `json:"time"`
	// IsToday is derived from Time against the capture date.
	IsToday bool `json:"isToday"`
	// Images holds at most one image reference (data URI or absolute URL).
	Images []string `json:"images"`
}

// FirstImage returns the retained image or an empty string.
func (p Post) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// EntitySnapshot is the per-profile result of one run.
type EntitySnapshot struct {
	Nickname    string `json:"nickname"`
	HomepageURL string `json:"homepageUrl"`
	Posts       []Post `json:"posts"`
}

// HasRecent reports whether at least one post is from the capture date.
func (e EntitySnapshot) HasRecent() bool {
	for _, p := range e.Posts {
		if p.IsToday {
			return true
		}
	}
	return false
}

// RecentOnly returns a copy holding only the posts flagged as today's.
func (e EntitySnapshot) RecentOnly() EntitySnapshot {
	out := EntitySnapshot{Nickname: e.Nickname, HomepageURL: e.HomepageURL, Posts: []Post{}}
	for _, p := range e.Posts {
		if p.IsToday {
			out.Posts = append(out.Posts, p)
		}
	}
	return out
}

// Capped returns a copy with at most MaxPostsPerEntity posts and a non-nil post slice.
func (e EntitySnapshot) Capped() EntitySnapshot {
	posts := e.Posts
	if len(posts) > MaxPostsPerEntity {
		posts = posts[:MaxPostsPerEntity]
	}
	out := EntitySnapshot{Nickname: e.Nickname, HomepageURL: e.HomepageURL, Posts: make([]Post, len(posts))}
	copy(out.Posts, posts)
	return out
}

// CountPosts sums the posts across all snapshots.
func CountPosts(snaps []EntitySnapshot) int {
	n := 0
	for _, s := range snaps {
		n += len(s.Posts)
	}
	return n
}
