package parsers

import (
	"github.com/tidwall/gjson"

	"github.com/brettboylen/social-listener/models"
)

var instagramPostTypes = map[int64]string{
	1: "image",
	2: "video",
	8: "carousel",
}

// InstagramPost parses a media item from a user feed, a reels search, or a
// flattened top results page
func InstagramPost(item gjson.Result) models.Post {
	user := item.Get("user")
	mediaType := item.Get("media_type").Int()
	if !item.Get("media_type").Exists() {
		mediaType = 1
	}
	postType, ok := instagramPostTypes[mediaType]
	if !ok {
		postType = "image"
	}

	postURL := ""
	if code := item.Get("code").String(); code != "" {
		postURL = "https://www.instagram.com/p/" + code + "/"
	}

	meta := map[string]any{
		"platform":        models.PlatformInstagram,
		"media_type_code": mediaType,
		"video_duration":  item.Get("video_duration").Value(),
		"author":          user.Get("username").Value(),
	}

	return models.Post{
		PostID:           firstOf(item.Get("pk"), item.Get("id")).String(),
		Platform:         models.PlatformInstagram,
		ChannelHandle:    user.Get("username").String(),
		ChannelID:        firstOf(user.Get("pk"), user.Get("id")).String(),
		Content:          item.Get("caption.text").String(),
		PostURL:          postURL,
		PostedAt:         postedAt(item.Get("taken_at"), meta),
		PostType:         postType,
		MediaURLs:        instagramMedia(item),
		Likes:            optInt(item.Get("like_count")),
		CommentsCount:    optInt(item.Get("comment_count")),
		Views:            optInt(item.Get("play_count")),
		PlatformMetadata: meta,
	}
}

// InstagramChannel parses a user profile
func InstagramChannel(user gjson.Result) models.Channel {
	username := user.Get("username").String()
	channelURL := ""
	if username != "" {
		channelURL = "https://www.instagram.com/" + username + "/"
	}

	return models.Channel{
		ChannelID:     firstOf(user.Get("pk"), user.Get("id")).String(),
		Platform:      models.PlatformInstagram,
		ChannelHandle: username,
		Subscribers:   optInt(user.Get("follower_count")),
		TotalPosts:    optInt(user.Get("media_count")),
		ChannelURL:    channelURL,
		Description:   user.Get("biography").String(),
		ChannelMetadata: map[string]any{
			"verified":  user.Get("is_verified").Bool(),
			"full_name": user.Get("full_name").Value(),
			"category":  user.Get("category").Value(),
		},
	}
}

// FlattenInstagramTopSerp collects the media items from a top results
// response. Results are grouped into sections whose layout content holds
// clips, media lists, or further nested sections.
func FlattenInstagramTopSerp(resp gjson.Result) []gjson.Result {
	var items []gjson.Result
	flattenSections(resp.Get("media_grid.sections"), &items)
	return items
}

func flattenSections(sections gjson.Result, items *[]gjson.Result) {
	for _, section := range sections.Array() {
		section.Get("layout_content").ForEach(func(_, layout gjson.Result) bool {
			if !layout.IsObject() {
				return true
			}
			for _, clip := range layout.Get("clips.items").Array() {
				if media := clip.Get("media"); media.IsObject() {
					*items = append(*items, media)
				}
			}
			for _, entry := range layout.Get("medias").Array() {
				media := entry.Get("media")
				if !media.IsObject() {
					media = entry
				}
				if media.IsObject() {
					*items = append(*items, media)
				}
			}
			if nested := layout.Get("sections"); nested.IsArray() {
				flattenSections(nested, items)
			}
			return true
		})
	}
}

// instagramMedia picks one image and one video per carousel item, or per post
func instagramMedia(item gjson.Result) []string {
	urls := []string{}
	if carousel := item.Get("carousel_media").Array(); len(carousel) > 0 {
		for _, cm := range carousel {
			urls = appendNonEmpty(urls, cm.Get("image_versions2.candidates.0.url").String())
			urls = appendNonEmpty(urls, cm.Get("video_versions.0.url").String())
		}
		return urls
	}
	urls = appendNonEmpty(urls, item.Get("image_versions2.candidates.0.url").String())
	urls = appendNonEmpty(urls, item.Get("video_versions.0.url").String())
	return urls
}

func appendNonEmpty(list []string, s string) []string {
	if s == "" {
		return list
	}
	return append(list, s)
}
