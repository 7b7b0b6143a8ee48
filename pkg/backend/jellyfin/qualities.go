package jellyfin

import "fmt"

// Quality is one rung of the fixed transcode ladder.
type Quality struct {
	VideoBitrate int64
	AudioBitrate int64
	Description  string
}

// qualitiesList is the transcode ladder, ascending by video bitrate.
var qualitiesList = []Quality{
	{420_000, 128_000, "420 kbps"},
	{720_000, 192_000, "720 kbps"},
	{1_500_000, 192_000, "1.5 Mbps"},
	{3_000_000, 192_000, "3 Mbps"},
	{4_000_000, 192_000, "4 Mbps"},
	{6_000_000, 192_000, "6 Mbps"},
	{8_000_000, 192_000, "8 Mbps"},
	{10_000_000, 192_000, "10 Mbps"},
	{15_000_000, 192_000, "15 Mbps"},
	{20_000_000, 192_000, "20 Mbps"},
	{40_000_000, 192_000, "40 Mbps"},
	{60_000_000, 192_000, "60 Mbps"},
	{80_000_000, 192_000, "80 Mbps"},
	{120_000_000, 192_000, "120 Mbps"},
}

// ladderBelow returns the rungs strictly below the reference bitrate. A rung
// equal to the source would only re-encode at the same rate.
func ladderBelow(referenceBitrate int64) []Quality {
	var out []Quality
	for _, q := range qualitiesList {
		if q.VideoBitrate >= referenceBitrate {
			break
		}
		out = append(out, q)
	}
	return out
}

// formatBitrate renders a bitrate the way the source quality label shows it,
// e.g. 5000000 -> "5.00 Mbps".
func formatBitrate(b int64) string {
	switch {
	case b >= 1_000_000_000:
		return fmt.Sprintf("%.2f Gbps", float64(b)/1_000_000_000)
	case b >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", float64(b)/1_000_000)
	case b >= 1_000:
		return fmt.Sprintf("%.2f Kbps", float64(b)/1_000)
	default:
		return fmt.Sprintf("%d bps", b)
	}
}
