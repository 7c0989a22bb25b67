package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ytcmd/internal/model"
	"ytcmd/internal/ytdlp"
)

type EventKind string

const (
	EventLog      EventKind = "log"
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
)

// Event is one observation of a running job, in the order it was produced.
type Event struct {
	JobID    string
	Kind     EventKind
	Log      string
	Progress float64
	Success  bool
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID         string          `json:"id"`
	Command    string          `json:"command"`
	Status     model.JobStatus `json:"status"`
	Progress   float64         `json:"progress"`
	Logs       []string        `json:"logs"`
	StartedAt  string          `json:"started_at,omitempty"`
	FinishedAt string          `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Job supervises one command: its status, progress and recent output.
type Job struct {
	id   string
	spec ytdlp.Spec
	logs *LogBuffer

	mu         sync.Mutex
	status     model.JobStatus
	progress   float64
	proc       *ytdlp.Process
	startedAt  time.Time
	finishedAt time.Time
	lastErr    error
	done       chan struct{}
}

func New(spec ytdlp.Spec) *Job {
	return &Job{
		id:     newID(),
		spec:   spec,
		logs:   NewLogBuffer(MaxLogLines),
		status: model.StatusIdle,
		done:   make(chan struct{}),
	}
}

func (j *Job) ID() string {
	return j.id
}

// Command is the display form of what the job runs.
func (j *Job) Command() string {
	return j.spec.Display
}

// Start spawns the command and reports its events to emit. emit is called
// from several goroutines, never concurrently for the same stream, and the
// complete event is always the last one.
func (j *Job) Start(ctx context.Context, emit func(Event)) error {
	if emit == nil {
		emit = func(Event) {}
	}
	j.mu.Lock()
	if j.status != model.StatusIdle {
		j.mu.Unlock()
		return fmt.Errorf("job %s already started", j.id)
	}
	if err := model.TransitionStatus(&j.status, model.StatusRunning, j.id); err != nil {
		j.mu.Unlock()
		return err
	}
	j.startedAt = time.Now().UTC()
	j.mu.Unlock()

	proc, err := ytdlp.Spawn(ctx, j.spec, ytdlp.Handlers{
		Output: func(stream ytdlp.OutputStream, text string) {
			line := ytdlp.FormatOutput(stream, text)
			j.logs.Write(line)
			emit(Event{JobID: j.id, Kind: EventLog, Log: line})
			if pct, ok := ytdlp.ExtractProgress(text); ok {
				j.mu.Lock()
				j.progress = pct
				j.mu.Unlock()
				emit(Event{JobID: j.id, Kind: EventProgress, Progress: pct})
			}
		},
		Exit: func(succeeded bool, err error) {
			j.finish(succeeded, err)
			emit(Event{JobID: j.id, Kind: EventComplete, Success: succeeded})
		},
	})
	if err != nil {
		msg := fmt.Sprintf("failed to start command: %v", err)
		j.logs.Write(msg)
		j.finish(false, err)
		emit(Event{JobID: j.id, Kind: EventLog, Log: msg})
		emit(Event{JobID: j.id, Kind: EventComplete, Success: false})
		close(j.done)
		return err
	}

	j.mu.Lock()
	j.proc = proc
	j.mu.Unlock()
	go func() {
		<-proc.Done()
		close(j.done)
	}()
	return nil
}

func (j *Job) finish(succeeded bool, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	to := model.StatusError
	if succeeded {
		to = model.StatusSuccess
	}
	_ = model.TransitionStatus(&j.status, to, j.id)
	j.finishedAt = time.Now().UTC()
	j.lastErr = err
}

// Cancel kills the running process. It is a no-op once the job finished.
func (j *Job) Cancel() error {
	j.mu.Lock()
	proc := j.proc
	j.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.Kill()
}

// Done is closed once the job has finished and delivered its complete event.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) Status() model.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := Snapshot{
		ID:       j.id,
		Command:  j.spec.Display,
		Status:   j.status,
		Progress: j.progress,
		Logs:     j.logs.Lines(),
	}
	if !j.startedAt.IsZero() {
		s.StartedAt = j.startedAt.Format(time.RFC3339)
	}
	if !j.finishedAt.IsZero() {
		s.FinishedAt = j.finishedAt.Format(time.RFC3339)
	}
	if j.lastErr != nil {
		s.Error = j.lastErr.Error()
	}
	return s
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
