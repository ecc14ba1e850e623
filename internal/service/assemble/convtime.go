package assemble

import (
	"regexp"
	"time"
)

// DefaultLocation is reported when no conversation time can be derived.
const DefaultLocation = "Etc/UTC"

var mediaTimePattern = regexp.MustCompile(`\d{2}\.\d{2}\.\d{2}\.\d{3}-\d{2}-\d{2}-\d{4}`)

const mediaTimeLayout = "15.04.05.000-01-02-2006"

// ConversationTime extracts the recording time embedded in a media file name
// such as "0a.93.a0.3e.00.00-09.25.51.067-09-26-2019.wav". It returns "" and
// DefaultLocation when the name carries no time.
func ConversationTime(mediaURI, location string) (string, string) {
	match := mediaTimePattern.FindString(mediaURI)
	if match == "" {
		return "", DefaultLocation
	}
	t, err := time.Parse(mediaTimeLayout, match)
	if err != nil {
		return "", DefaultLocation
	}
	if location == "" {
		location = DefaultLocation
	}
	return t.Format(TimeLayout), location
}
