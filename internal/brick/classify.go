package brick

import (
	"errors"
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// ErrNegativeDimension is returned when a rectangle side cannot be bucketed.
var ErrNegativeDimension = errors.New("negative dimension")

// SizeRange maps side lengths in [Min, Max) pixels to a size label.
type SizeRange struct {
	Label Size
	Min   float64
	Max   float64
}

// SizeTable lists the size buckets in lookup order. The ranges are
// contiguous from 0 and the last one is unbounded.
var SizeTable = []SizeRange{
	{Label: SizeTwo, Min: 0, Max: 90},
	{Label: SizeThree, Min: 90, Max: 110},
	{Label: SizeFour, Min: 110, Max: 150},
	{Label: SizeSix, Min: 150, Max: 180},
	{Label: SizeEight, Min: 180, Max: math.Inf(1)},
}

// LookupSize returns the bucket containing one side length.
func LookupSize(length float64) (Size, error) {
	for _, r := range SizeTable {
		if length >= r.Min && length < r.Max {
			return r.Label, nil
		}
	}
	return 0, fmt.Errorf("size of %v: %w", length, ErrNegativeDimension)
}

// ClassifySize buckets width and height independently.
func ClassifySize(width, height float64) ([2]Size, error) {
	w, err := LookupSize(width)
	if err != nil {
		return [2]Size{}, err
	}
	h, err := LookupSize(height)
	if err != nil {
		return [2]Size{}, err
	}
	return [2]Size{w, h}, nil
}

// Channel selects which histogram a color range is tested against.
type Channel int

const (
	ChannelHue Channel = iota
	ChannelSaturation
)

// Histogram sizes (OpenCV 8-bit HSV scale).
const (
	HueBins = 180
	SatBins = 256
)

// ColorRange maps a peak bin in [Min, Max] of one channel to a color.
type ColorRange struct {
	Label   Color
	Channel Channel
	Min     int
	Max     int
}

func (r ColorRange) contains(bin int) bool {
	return bin >= r.Min && bin <= r.Max
}

// ColorTable lists the color ranges in priority order. Overlapping ranges
// resolve to the earlier entry, so the order must not change.
var ColorTable = []ColorRange{
	{Label: ColorGrey, Channel: ChannelSaturation, Min: 0, Max: 15},
	{Label: ColorLightGrey, Channel: ChannelSaturation, Min: 15, Max: 33},
	{Label: ColorLime, Channel: ChannelHue, Min: 23, Max: 38},
	{Label: ColorGreen, Channel: ChannelHue, Min: 38, Max: 71},
	{Label: ColorBlue, Channel: ChannelHue, Min: 108, Max: 126},
	{Label: ColorOrange, Channel: ChannelHue, Min: 0, Max: 10},
	{Label: ColorYellow, Channel: ChannelHue, Min: 12, Max: 25},
	{Label: ColorAzure, Channel: ChannelHue, Min: 98, Max: 108},
}

// ColorPeaks is the most populated bin of the hue and saturation histograms
// of a crop, with its pixel count.
type ColorPeaks struct {
	HueBin   int
	HueCount float64
	SatBin   int
	SatCount float64
}

// MatchColor walks ColorTable and returns the first color whose channel peak
// falls in range and clears that channel's count threshold.
func MatchColor(peaks ColorPeaks, params DetectionParams) Color {
	for _, r := range ColorTable {
		switch r.Channel {
		case ChannelSaturation:
			if r.contains(peaks.SatBin) && peaks.SatCount > params.SatMinCount {
				return r.Label
			}
		case ChannelHue:
			if r.contains(peaks.HueBin) && peaks.HueCount > params.HueMinCount {
				return r.Label
			}
		}
	}
	return ColorNone
}

// ClassifyColor computes the hue and saturation histograms of an HSV crop
// and matches their peaks against ColorTable.
func ClassifyColor(hsvCrop gocv.Mat, params DetectionParams) (Color, ColorPeaks) {
	if hsvCrop.Empty() {
		return ColorNone, ColorPeaks{}
	}

	var peaks ColorPeaks
	peaks.HueBin, peaks.HueCount = channelPeak(hsvCrop, 0, HueBins, 0, 180)
	peaks.SatBin, peaks.SatCount = channelPeak(hsvCrop, 1, SatBins, 0, 256)

	return MatchColor(peaks, params), peaks
}

// channelPeak histograms one channel of src and returns the peak bin.
func channelPeak(src gocv.Mat, channel, bins int, lo, hi float64) (int, float64) {
	mask := gocv.NewMat()
	defer mask.Close()

	hist := gocv.NewMat()
	defer hist.Close()

	gocv.CalcHist([]gocv.Mat{src}, []int{channel}, mask, &hist, []int{bins}, []float64{lo, hi}, false)

	counts := make([]float64, hist.Rows())
	for i := range counts {
		counts[i] = float64(hist.GetFloatAt(i, 0))
	}
	return histogramPeak(counts)
}

// histogramPeak returns the first index holding the maximum count.
func histogramPeak(counts []float64) (int, float64) {
	if len(counts) == 0 {
		return 0, 0
	}
	idx := floats.MaxIdx(counts)
	return idx, counts[idx]
}
