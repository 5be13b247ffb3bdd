// Package services – attachment extraction and media classification.
//
// Telegram distinguishes many attachment shapes; the bridge flattens them
// to one Attachment row per file and later classifies each as ephemeral
// media (kept only behind the platform file handle) or as a genuine
// document worth mirroring into the document registry.
package services

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// mediaMimes are mime types that always classify as ephemeral media.
var mediaMimes = map[string]bool{
	"audio/ogg":  true,
	"audio/opus": true,
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// mediaPrefixes classify by the synthetic file names Telegram clients (and
// this bridge) assign to ephemeral artifacts.
var mediaPrefixes = []string{"voice_", "video_note_", "sticker_", "photo_"}

// IsMedia reports whether an attachment is an ephemeral chat artifact
// (voice note, photo, sticker, video note). Media is never promoted to the
// document registry; it stays retrievable only through the chat transport's
// file handle, which avoids duplicating storage.
func IsMedia(mimeType, fileName string) bool {
	if mediaMimes[mimeType] {
		return true
	}
	for _, p := range mediaPrefixes {
		if len(fileName) >= len(p) && fileName[:len(p)] == p {
			return true
		}
	}
	return false
}

// extractedFile is one attachment pulled out of an inbound message before
// persistence.
type extractedFile struct {
	FileID   string
	FileName string
	MimeType string
	FileSize int64
	Duration *int // seconds, audio/video only
}

// extractAttachments flattens every file the message carries. Photos come
// as a size ladder; the largest rendition wins.
func extractAttachments(msg *tgbotapi.Message) []extractedFile {
	if msg == nil {
		return nil
	}
	var out []extractedFile
	if len(msg.Photo) > 0 {
		photo := largestPhoto(msg.Photo)
		out = append(out, extractedFile{
			FileID:   photo.FileID,
			FileName: "photo_" + photo.FileUniqueID + ".jpg",
			MimeType: "image/jpeg",
			FileSize: int64(photo.FileSize),
		})
	}
	if d := msg.Document; d != nil {
		out = append(out, extractedFile{
			FileID:   d.FileID,
			FileName: d.FileName,
			MimeType: d.MimeType,
			FileSize: int64(d.FileSize),
		})
	}
	if v := msg.Voice; v != nil {
		dur := v.Duration
		mime := v.MimeType
		if mime == "" {
			mime = "audio/ogg"
		}
		out = append(out, extractedFile{
			FileID:   v.FileID,
			FileName: "voice_" + v.FileUniqueID + ".ogg",
			MimeType: mime,
			FileSize: int64(v.FileSize),
			Duration: &dur,
		})
	}
	if a := msg.Audio; a != nil {
		dur := a.Duration
		out = append(out, extractedFile{
			FileID:   a.FileID,
			FileName: a.FileName,
			MimeType: a.MimeType,
			FileSize: int64(a.FileSize),
			Duration: &dur,
		})
	}
	if v := msg.Video; v != nil {
		dur := v.Duration
		out = append(out, extractedFile{
			FileID:   v.FileID,
			FileName: v.FileName,
			MimeType: v.MimeType,
			FileSize: int64(v.FileSize),
			Duration: &dur,
		})
	}
	if vn := msg.VideoNote; vn != nil {
		dur := vn.Duration
		out = append(out, extractedFile{
			FileID:   vn.FileID,
			FileName: "video_note_" + vn.FileUniqueID + ".mp4",
			MimeType: "video/mp4",
			FileSize: int64(vn.FileSize),
			Duration: &dur,
		})
	}
	if st := msg.Sticker; st != nil {
		out = append(out, extractedFile{
			FileID:   st.FileID,
			FileName: "sticker_" + st.FileUniqueID + ".webp",
			MimeType: "image/webp",
			FileSize: int64(st.FileSize),
		})
	}
	return out
}

// largestPhoto picks the biggest rendition from the photo size ladder.
func largestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
