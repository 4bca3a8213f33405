package schedule

// ApplyEnvelope shapes pcm in place with a linear fade-in over the first
// fadeIn seconds and a linear fade-out over the last fadeOut seconds, holding
// full volume in between. Durations longer than the clip are clamped.
func ApplyEnvelope(pcm []int16, sampleRate int, fadeIn, fadeOut float64) {
	if sampleRate <= 0 || len(pcm) == 0 {
		return
	}

	in := int(fadeIn * float64(sampleRate))
	out := int(fadeOut * float64(sampleRate))
	if in > len(pcm) {
		in = len(pcm)
	}
	if out > len(pcm) {
		out = len(pcm)
	}

	for i := 0; i < in; i++ {
		gain := float64(i) / float64(in)
		pcm[i] = int16(float64(pcm[i]) * gain)
	}
	for i := 0; i < out; i++ {
		gain := float64(i+1) / float64(out)
		idx := len(pcm) - 1 - i
		pcm[idx] = int16(float64(pcm[idx]) * gain)
	}
}
