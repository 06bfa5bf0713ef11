package geo

// Segment is a fixed-length slice of a route geometry. The final segment of a
// route may be shorter than the requested length.
type Segment struct {
	Start  Point
	End    Point
	Meters float64
}

// Midpoint returns the linear midpoint of the segment. Adequate at segment
// scale; segments are short enough that spherical interpolation is unnecessary.
func (s Segment) Midpoint() Point {
	return Point{
		Lat: (s.Start.Lat + s.End.Lat) / 2,
		Lon: (s.Start.Lon + s.End.Lon) / 2,
	}
}

// Segmentize splits a path into consecutive segments of approximately
// segmentMeters each, interpolating split points within polyline edges.
// The final segment carries whatever length remains. A path with fewer than
// two points, or with zero total length, produces no segments.
func Segmentize(points []Point, segmentMeters float64) []Segment {
	if len(points) < 2 || segmentMeters <= 0 {
		return nil
	}

	var segments []Segment
	segStart := points[0]
	accumulated := 0.0

	for i := 1; i < len(points); i++ {
		edgeStart := points[i-1]
		edgeEnd := points[i]
		edgeDist := Haversine(edgeStart, edgeEnd)

		for accumulated+edgeDist >= segmentMeters {
			remaining := segmentMeters - accumulated
			fraction := remaining / edgeDist

			cut := Point{
				Lat: edgeStart.Lat + fraction*(edgeEnd.Lat-edgeStart.Lat),
				Lon: edgeStart.Lon + fraction*(edgeEnd.Lon-edgeStart.Lon),
			}
			segments = append(segments, Segment{Start: segStart, End: cut, Meters: segmentMeters})

			segStart = cut
			edgeStart = cut
			edgeDist -= remaining
			accumulated = 0
		}

		accumulated += edgeDist
	}

	if accumulated > 0 {
		segments = append(segments, Segment{
			Start:  segStart,
			End:    points[len(points)-1],
			Meters: accumulated,
		})
	}

	return segments
}
