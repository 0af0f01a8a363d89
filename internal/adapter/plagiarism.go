package adapter

import "context"

// referenceLength is the text length at which the duplication proxy saturates.
const referenceLength = 2000

// Plagiarism estimates duplication density of submitted text.
//
// The ratio is a linear length-based proxy (stand-in for an external
// plagiarism API): monotonic in text length, saturating at referenceLength.
// Replacing the ratio source must preserve the [0,1] contract.
type Plagiarism struct{}

func NewPlagiarism() *Plagiarism {
	return &Plagiarism{}
}

func (p *Plagiarism) Name() string { return "plagiarism" }

func (p *Plagiarism) Run(_ context.Context, payload Payload) (Raw, error) {
	ratio := float64(len(payload.Text)) / referenceLength
	if ratio > 1 {
		ratio = 1
	}
	return Raw{"ratio": ratio}, nil
}

func (p *Plagiarism) Normalize(raw Raw) float64 {
	return clamp01(rawFloat(raw, "ratio"))
}
