package session

import (
	"sync"
	"time"
)

// DefaultProgressSteps are revealed one by one while a scout is loading.
var DefaultProgressSteps = []string{
	"Searching reviews from the celiac community",
	"Reading the menu",
	"Checking cross-contamination risks",
	"Scoring gluten safety",
	"Writing your call script",
}

// QuestionnaireProgressSteps are revealed while the final report is computed.
var QuestionnaireProgressSteps = []string{
	"Weighing the staff's answers",
	"Adjusting the safety score",
	"Preparing your final report",
}

// progress reveals steps on a delay until stopped. Once stop returns no
// further step is delivered.
type progress struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func startProgress(interval time.Duration, steps []string, fn func(i int, step string)) *progress {
	p := &progress{}
	if len(steps) == 0 || interval <= 0 {
		p.stopped = true
		return p
	}

	var next func(i int)
	next = func(i int) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.stopped {
			return
		}
		fn(i, steps[i])
		if i+1 < len(steps) {
			p.timer = time.AfterFunc(interval, func() { next(i + 1) })
		}
	}

	p.mu.Lock()
	p.timer = time.AfterFunc(interval, func() { next(0) })
	p.mu.Unlock()
	return p
}

func (p *progress) stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
}
