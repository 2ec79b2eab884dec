package worker

import (
	"github.com/brettboylen/social-listener/models"
)

// Deduper tracks every post id and channel key seen in one run. It is owned
// by the single goroutine consuming the batch stream.
type Deduper struct {
	posts    map[string]bool
	channels map[string]bool
}

// NewDeduper starts from already-seen keys, either of which may be nil
func NewDeduper(posts, channels map[string]bool) *Deduper {
	d := &Deduper{posts: posts, channels: channels}
	if d.posts == nil {
		d.posts = make(map[string]bool)
	}
	if d.channels == nil {
		d.channels = make(map[string]bool)
	}
	return d
}

// Filter returns the posts and channels of b not seen before and marks
// them seen
func (d *Deduper) Filter(b models.Batch) ([]models.Post, []models.Channel) {
	var posts []models.Post
	for _, p := range b.Posts {
		if p.PostID == "" || d.posts[p.PostID] {
			continue
		}
		d.posts[p.PostID] = true
		posts = append(posts, p)
	}

	var channels []models.Channel
	for _, c := range b.Channels {
		key := c.Key()
		if (c.ChannelID == "" && c.ChannelHandle == "") || d.channels[key] {
			continue
		}
		d.channels[key] = true
		channels = append(channels, c)
	}
	return posts, channels
}

// Posts returns the number of distinct posts seen
func (d *Deduper) Posts() int {
	return len(d.posts)
}
