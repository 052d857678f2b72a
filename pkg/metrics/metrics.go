package metrics

// RequestSecondsBuckets covers everything from a quick TTS call to a multi-minute render.
var RequestSecondsBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}
