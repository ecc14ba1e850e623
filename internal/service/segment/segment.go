// Package segment reconstructs conversational turns from ASR word streams.
package segment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SpeakerPrefix is the prefix of canonical speaker labels.
const SpeakerPrefix = "spk_"

// ErrBadLabel is returned for speaker or channel labels without a numeric suffix.
var ErrBadLabel = errors.New("segment: malformed speaker label")

// ID returns the stable identifier of the turn at index within a job.
func ID(jobName string, index int) string {
	return fmt.Sprintf("%s-seg-%d", jobName, index+1)
}

// SpeakerLabel returns the canonical label for a speaker index.
func SpeakerLabel(index int) string {
	return SpeakerPrefix + strconv.Itoa(index)
}

// Canonical maps a raw "<prefix>_<N>" label to "spk_N" and returns N.
func Canonical(raw string) (string, int, error) {
	i := strings.LastIndexByte(raw, '_')
	if i < 0 || i == len(raw)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadLabel, raw)
	}
	n, err := strconv.Atoi(raw[i+1:])
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadLabel, raw)
	}
	return SpeakerLabel(n), n, nil
}
