package jellyfin

// Jellyfin API models. The server speaks PascalCase JSON.

type loginResponse struct {
	AccessToken string           `json:"AccessToken"`
	SessionInfo loginSessionInfo `json:"SessionInfo"`
}

type loginSessionInfo struct {
	UserID string `json:"UserId"`
}

type itemDto struct {
	ID           string           `json:"Id"`
	Name         string           `json:"Name"`
	MediaSources []mediaSourceDto `json:"MediaSources"`
}

type mediaSourceDto struct {
	ID                   string           `json:"Id"`
	Bitrate              int64            `json:"Bitrate"`
	SupportsDirectStream bool             `json:"SupportsDirectStream"`
	SupportsTranscoding  bool             `json:"SupportsTranscoding"`
	MediaStreams         []mediaStreamDto `json:"MediaStreams"`
}

type mediaStreamDto struct {
	Type                   string `json:"Type"` // "Video", "Audio", "Subtitle"
	Index                  int    `json:"Index"`
	Codec                  string `json:"Codec"`
	Language               string `json:"Language"`
	DisplayTitle           string `json:"DisplayTitle"`
	BitRate                int64  `json:"BitRate"`
	IsExternal             bool   `json:"IsExternal"`
	SupportsExternalStream bool   `json:"SupportsExternalStream"`
}

type playbackInfoRequest struct {
	UserID                              string           `json:"UserId"`
	IsPlayback                          bool             `json:"IsPlayback"`
	MediaSourceID                       string           `json:"MediaSourceId"`
	MaxStreamingBitrate                 int64            `json:"MaxStreamingBitrate"`
	AudioStreamIndex                    *int             `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex                 *int             `json:"SubtitleStreamIndex,omitempty"`
	AlwaysBurnInSubtitleWhenTranscoding bool             `json:"AlwaysBurnInSubtitleWhenTranscoding"`
	EnableTranscoding                   bool             `json:"EnableTranscoding"`
	DeviceProfile                       deviceProfileDto `json:"DeviceProfile"`
}

type sessionDto struct {
	PlaySessionID string             `json:"PlaySessionId"`
	MediaSources  []sessionSourceDto `json:"MediaSources"`
}

type sessionSourceDto struct {
	TranscodingURL string `json:"TranscodingUrl"`
}

type viewsDto struct {
	Items []viewDto `json:"Items"`
}

type viewDto struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	CollectionType string `json:"CollectionType"`
}

// Device profile, after jellyfin-mpv-shim.

type deviceProfileDto struct {
	Name                             string               `json:"Name"`
	MaxStreamingBitrate              int64                `json:"MaxStreamingBitrate"`
	MaxStaticBitrate                 int64                `json:"MaxStaticBitrate"`
	MusicStreamingTranscodingBitrate int64                `json:"MusicStreamingTranscodingBitrate"`
	TranscodingProfiles              []profileDto         `json:"TranscodingProfiles"`
	DirectPlayProfiles               []profileDto         `json:"DirectPlayProfiles"`
	ResponseProfiles                 []profileDto         `json:"ResponseProfiles"`
	ContainerProfiles                []profileDto         `json:"ContainerProfiles"`
	CodecProfiles                    []profileDto         `json:"CodecProfiles"`
	SubtitleProfiles                 []subtitleProfileDto `json:"SubtitleProfiles"`
}

type profileDto struct {
	Type             string                `json:"Type"`
	Container        string                `json:"Container,omitempty"`
	Protocol         string                `json:"Protocol,omitempty"`
	AudioCodec       string                `json:"AudioCodec,omitempty"`
	VideoCodec       string                `json:"VideoCodec,omitempty"`
	Codec            string                `json:"Codec,omitempty"`
	MaxAudioChannels string                `json:"MaxAudioChannels,omitempty"`
	Conditions       []profileConditionDto `json:"Conditions,omitempty"`
}

type profileConditionDto struct {
	Condition string `json:"Condition"`
	Property  string `json:"Property"`
	Value     string `json:"Value"`
}

type subtitleProfileDto struct {
	Format string `json:"Format"`
	Method string `json:"Method"`
}
