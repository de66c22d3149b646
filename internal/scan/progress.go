package scan

import (
	"github.com/schollz/progressbar/v3"
)

// Progress is notified while dashboard bodies are fetched.
type Progress interface {
	Start(total int)
	Add(n int)
	Finish()
}

type NopProgress struct{}

func (NopProgress) Start(int) {}
func (NopProgress) Add(int)   {}
func (NopProgress) Finish()   {}

// BarProgress draws a progress bar on stderr.
type BarProgress struct {
	bar *progressbar.ProgressBar
}

func NewBarProgress() *BarProgress {
	return &BarProgress{}
}

func (p *BarProgress) Start(total int) {
	p.bar = progressbar.Default(int64(total), "fetching dashboards")
}

func (p *BarProgress) Add(n int) {
	if p.bar != nil {
		_ = p.bar.Add(n)
	}
}

func (p *BarProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		_ = p.bar.Close()
		p.bar = nil
	}
}
