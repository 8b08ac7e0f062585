package greenbutton

import (
	"encoding/xml"
	"io"
	"os"
	"strings"
)

// espiFeed mirrors the Atom envelope the usage endpoint returns. Element
// names are matched by local name; the provider serves atom and espi
// namespaces but the dialect is fixed.
type espiFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []espiEntry `xml:"entry"`
}

type espiEntry struct {
	Links   []espiLink  `xml:"link"`
	Content espiContent `xml:"content"`
}

type espiLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type espiContent struct {
	IntervalBlocks []espiIntervalBlock `xml:"IntervalBlock"`
}

type espiIntervalBlock struct {
	Readings []espiIntervalReading `xml:"IntervalReading"`
}

type espiIntervalReading struct {
	ReadingQuality *espiReadingQuality `xml:"ReadingQuality"`
	TimePeriod     *espiTimePeriod     `xml:"timePeriod"`
	Value          *string             `xml:"value"`
	TOU            *string             `xml:"tou"`
}

type espiReadingQuality struct {
	Quality *string `xml:"quality"`
}

type espiTimePeriod struct {
	Duration *string `xml:"duration"`
	Start    *string `xml:"start"`
}

// ParseFile parses the staged usage payload at path.
func ParseFile(path string) ([]Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes the Atom/ESPI usage envelope into flat interval-reading
// rows. An entry without an interval block contributes zero rows; an
// entry without a resolvable usage point keeps its rows with the usage
// point left undetermined. Unparsable XML fails the whole parse.
//
// The unit is stamped kWh unconditionally: the endpoint only serves
// electric interval data and does not carry a usable unit element.
func Parse(r io.Reader) ([]Reading, error) {
	var feed espiFeed
	if err := xml.NewDecoder(r).Decode(&feed); err != nil {
		return nil, &ParseError{Err: err}
	}

	var readings []Reading
	for _, entry := range feed.Entries {
		if len(entry.Content.IntervalBlocks) == 0 {
			continue
		}
		usagePoint := usagePointID(entry.Links)
		block := entry.Content.IntervalBlocks[0]
		for _, ir := range block.Readings {
			reading := Reading{
				UsagePoint: usagePoint,
				Value:      ir.Value,
				TOU:        ir.TOU,
				Unit:       "kWh",
			}
			if ir.ReadingQuality != nil {
				reading.ReadingQuality = ir.ReadingQuality.Quality
			}
			if ir.TimePeriod != nil {
				reading.Duration = ir.TimePeriod.Duration
				reading.Start = ir.TimePeriod.Start
			}
			readings = append(readings, reading)
		}
	}
	return readings, nil
}

// usagePointID derives the usage point from the entry's "up" relation:
// the path segment immediately following the UsagePoint token. Returns
// nil when no up link resolves, leaving the usage point undetermined.
func usagePointID(links []espiLink) *string {
	for _, link := range links {
		if link.Rel != "up" {
			continue
		}
		segments := strings.Split(link.Href, "/")
		for i, seg := range segments {
			if seg == "UsagePoint" && i+1 < len(segments) {
				id := segments[i+1]
				return &id
			}
		}
	}
	return nil
}
