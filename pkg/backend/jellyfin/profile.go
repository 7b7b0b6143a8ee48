package jellyfin

// deviceProfile builds the profile sent with PlaybackInfo. Modeled on the
// profile jellyfin-mpv-shim sends: direct play everything, transcode video to
// hls/mp4 with the configured codec.
func deviceProfile(name, videoCodec string, videoBitrate, audioBitrate int64) deviceProfileDto {
	var subtitleProfiles []subtitleProfileDto
	for _, format := range []string{"srt", "ass", "sub", "ssa", "smi"} {
		subtitleProfiles = append(subtitleProfiles,
			subtitleProfileDto{Format: format, Method: "External"},
			subtitleProfileDto{Format: format, Method: "Embed"},
		)
	}
	for _, format := range []string{"pgssub", "dvdsub", "dvbsub", "pgs"} {
		subtitleProfiles = append(subtitleProfiles, subtitleProfileDto{Format: format, Method: "Embed"})
	}

	return deviceProfileDto{
		Name:                             name,
		MaxStreamingBitrate:              videoBitrate,
		MaxStaticBitrate:                 videoBitrate,
		MusicStreamingTranscodingBitrate: audioBitrate,
		TranscodingProfiles: []profileDto{
			{Type: "Audio"},
			{Type: "Photo", Container: "jpeg"},
			{
				Type:             "Video",
				Container:        "mp4",
				Protocol:         "hls",
				AudioCodec:       "aac,mp3,ac3,opus,flac,vorbis",
				VideoCodec:       videoCodec,
				MaxAudioChannels: "6",
			},
		},
		DirectPlayProfiles: []profileDto{
			{Type: "Audio"},
			{Type: "Photo"},
			{Type: "Video"},
		},
		ResponseProfiles:  []profileDto{},
		ContainerProfiles: []profileDto{},
		CodecProfiles: []profileDto{
			{
				Type:  "Video",
				Codec: videoCodec,
				Conditions: []profileConditionDto{
					{Condition: "Equals", Property: "Width", Value: "0"},
				},
			},
		},
		SubtitleProfiles: subtitleProfiles,
	}
}
