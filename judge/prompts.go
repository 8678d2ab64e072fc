package judge

import "strings"

func commentPrompt(req Request) string {
	return strings.Join([]string{
		"Tum ek fair judge ho jo YouTube creators ke beech deal ko judge karta hai.",
		"Deal details:",
		"- From: " + req.Initiator.Display(),
		"- To (accept): " + req.Acceptor.Display(),
		`- Text: "` + strings.TrimSpace(req.Details) + `"`,
		"",
		"Ek hi line me short Hindi + thoda emoji me bolo:",
		"1) Deal roughly fair hai ya unfair?",
		"2) Agar koi dikkat ho sakti hai to 1 short hint do.",
	}, "\n")
}

func analysisPrompt(cleaned string) string {
	return strings.Join([]string{
		"Analyze the following Creator Support Army deal text.",
		"Output must be in strict JSON only.",
		`{"summary": "", "risk": "", "clarity": "", "flags": []}`,
		"",
		`Deal: "` + cleaned + `"`,
	}, "\n")
}

func rulesPrompt(acceptWindow string) string {
	return strings.Join([]string{
		"Explain CSA Court rules in simple Hindi:",
		"- Deal Lock",
		"- " + acceptWindow + " accept rule",
		"- Queue system",
		"- Cancel rules",
		"Short and clean.",
	}, "\n")
}
