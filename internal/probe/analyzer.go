// Package probe inspects input and output media files and turns the
// raw ffprobe/mediainfo readings into the reporter's file and quality
// summaries.
package probe

import (
	"github.com/five82/mfboost/internal/ffprobe"
	"github.com/five82/mfboost/internal/mediainfo"
)

// MediaAnalyzer provides media analysis capabilities, kept as an
// interface so pipeline tests can substitute a fake without shelling
// out to ffprobe/mediainfo.
type MediaAnalyzer interface {
	GetVideoProperties(path string) (*VideoProperties, error)
	GetAudioStreams(path string) ([]AudioStream, error)
	GetHDRInfo(path string) (*HDRInfo, error)
	IsHDRDetectionAvailable() bool
}

// VideoProperties contains video stream properties needed for reporting.
type VideoProperties struct {
	Width        uint32
	Height       uint32
	DurationSecs float64
	BitDepth     *uint8
}

// AudioStream contains audio stream information.
type AudioStream struct {
	Codec    string
	Channels int
}

// HDRInfo contains HDR detection results.
type HDRInfo struct {
	IsHDR    bool
	BitDepth *uint8
}

// DefaultAnalyzer implements MediaAnalyzer using ffprobe and mediainfo.
type DefaultAnalyzer struct{}

// NewDefaultAnalyzer creates a new DefaultAnalyzer instance.
func NewDefaultAnalyzer() *DefaultAnalyzer {
	return &DefaultAnalyzer{}
}

func (a *DefaultAnalyzer) GetVideoProperties(path string) (*VideoProperties, error) {
	props, err := ffprobe.GetVideoProperties(path)
	if err != nil {
		return nil, err
	}
	return &VideoProperties{
		Width:        props.Width,
		Height:       props.Height,
		DurationSecs: props.DurationSecs,
		BitDepth:     props.HDRInfo.BitDepth,
	}, nil
}

func (a *DefaultAnalyzer) GetAudioStreams(path string) ([]AudioStream, error) {
	streams, err := ffprobe.GetAudioStreamInfo(path)
	if err != nil {
		return nil, err
	}
	result := make([]AudioStream, len(streams))
	for i, s := range streams {
		result[i] = AudioStream{Codec: s.CodecName, Channels: int(s.Channels)}
	}
	return result, nil
}

func (a *DefaultAnalyzer) GetHDRInfo(path string) (*HDRInfo, error) {
	info, err := mediainfo.GetMediaInfo(path)
	if err != nil {
		return nil, err
	}
	hdr := mediainfo.DetectHDR(info)
	return &HDRInfo{IsHDR: hdr.IsHDR, BitDepth: hdr.BitDepth}, nil
}

func (a *DefaultAnalyzer) IsHDRDetectionAvailable() bool {
	return mediainfo.IsAvailable()
}
