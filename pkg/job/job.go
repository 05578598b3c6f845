package job

import(
	"fmt"
	"log"
	"sync/atomic"

	"github.com/abworrall/hsi-synth/pkg/hsi"
	"github.com/abworrall/hsi-synth/pkg/synth"
)

type EventKind int

const(
	EventProgress EventKind = iota
	EventProduced
	EventFinished
)

func (k EventKind)String() string {
	switch k {
	case EventProgress: return "progress"
	case EventProduced: return "produced"
	case EventFinished: return "finished"
	default:            return fmt.Sprintf("event(%d)", int(k))
	}
}

// An Event is one message from a running job. Which fields are set
// depends on the Kind.
type Event struct {
	Kind      EventKind
	Progress  int            // EventProgress: percent, 0-100
	Result    *synth.Result  // EventProduced
	State     synth.State    // EventFinished: completed, cancelled or failed
	Err       error          // EventFinished: why it failed, if it did
}

func (e Event)String() string {
	switch e.Kind {
	case EventProgress: return fmt.Sprintf("progress(%d%%)", e.Progress)
	case EventProduced: return fmt.Sprintf("produced(%s)", e.Result.Image)
	default:            return fmt.Sprintf("finished(%s, err=%v)", e.State, e.Err)
	}
}

// At most 101 distinct progress values, then produced and finished;
// the worker never waits on a slow reader.
const eventBufferSize = 103

// A Job owns one synthesis request: it runs the integrator in the
// background, and relays what happens as Events. Every job that is
// started sends exactly one EventFinished, as the very last event, and
// then closes the channel.
type Job struct {
	integrator *synth.Integrator
	token      *synth.CancelToken

	events     chan Event
	progress   atomic.Int32
	started    atomic.Bool
	done       chan struct{}

	result     *synth.Result // only read after done is closed
	err        error
}

// New prepares the synthesis. All the preconditions (wavelength
// calibration, spectral overlap, reference spectra) are checked here,
// before any row is read, so a job that is returned can only fail on
// I/O.
func New(cube hsi.Hypercube, p synth.Parameters) (*Job, error) {
	token := synth.NewCancelToken()
	in, err := synth.Prepare(cube, p, token)
	if err != nil {
		return nil, err
	}

	return &Job{
		integrator: in,
		token:      token,
		events:     make(chan Event, eventBufferSize),
		done:       make(chan struct{}),
	}, nil
}

func (j *Job)String() string { return fmt.Sprintf("Job[%s, %d%%]", j.integrator, j.Progress()) }

// Events is closed after the EventFinished.
func (j *Job)Events() <-chan Event  { return j.events }

// Done is closed once the job has finished.
func (j *Job)Done() <-chan struct{} { return j.done }

// Progress polls the latest percentage.
func (j *Job)Progress() int         { return int(j.progress.Load()) }

func (j *Job)State() synth.State    { return j.integrator.State() }

// Integrator exposes the prepared curves, for diagnostics. Don't Run it.
func (j *Job)Integrator() *synth.Integrator { return j.integrator }

// Cancel asks the job to stop before its next row. It never blocks,
// and does nothing if the job is already over. Cancelling before Start
// means no rows are read at all.
func (j *Job)Cancel() {
	j.token.Cancel()
}

// Start runs the job on its own goroutine. Calling it again does nothing.
func (j *Job)Start() {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	go j.run()
}

// Wait blocks until the job is over, starting it first if nobody has.
// A cancelled job returns neither a result nor an error.
func (j *Job)Wait() (*synth.Result, error) {
	j.Start()
	<-j.done
	return j.result, j.err
}

// Run is Start followed by Wait.
func (j *Job)Run() (*synth.Result, error) {
	j.Start()
	return j.Wait()
}

func (j *Job)run() {
	log.Printf("Job starting: %s", j.integrator)

	j.result, j.err = j.integrator.Run(func(pct int) {
		j.progress.Store(int32(pct))
		j.events <- Event{Kind: EventProgress, Progress: pct}
	})

	if j.result != nil {
		j.events <- Event{Kind: EventProduced, Result: j.result}
	}

	state := j.integrator.State()
	log.Printf("Job finished: %s (err=%v)", state, j.err)

	j.events <- Event{Kind: EventFinished, State: state, Err: j.err}
	close(j.events)
	close(j.done)
}
