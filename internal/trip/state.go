package trip

// Status is the discriminator of a session State.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of a trip session. Only the fields that belong to Status
// are populated: Query for Loading, Routes and Summaries for Ready, Message for Failed.
type State struct {
	Status     Status
	Query      TripQuery
	Routes     []ColoredRoute
	Summaries  []RouteSummary
	Message    string
	Generation uint64
}

// Idle is the initial state of every session.
func Idle() State {
	return State{Status: StatusIdle}
}

// Loading is entered on submit.
func Loading(q TripQuery, generation uint64) State {
	return State{Status: StatusLoading, Query: q, Generation: generation}
}

// Ready carries the resolved routes. An empty route set is still Ready.
func Ready(routes []ColoredRoute, summaries []RouteSummary, generation uint64) State {
	if routes == nil {
		routes = []ColoredRoute{}
	}
	if summaries == nil {
		summaries = []RouteSummary{}
	}
	return State{Status: StatusReady, Routes: routes, Summaries: summaries, Generation: generation}
}

// Failed carries a user-visible message.
func Failed(message string, generation uint64) State {
	return State{Status: StatusFailed, Message: message, Generation: generation}
}

// HasRoutes reports whether the state is Ready with at least one renderable route.
func (s State) HasRoutes() bool {
	return s.Status == StatusReady && len(s.Routes) > 0
}

// clone copies the slices so readers never share backing arrays with the session.
func (s State) clone() State {
	if s.Routes != nil {
		routes := make([]ColoredRoute, len(s.Routes))
		copy(routes, s.Routes)
		s.Routes = routes
	}
	if s.Summaries != nil {
		summaries := make([]RouteSummary, len(s.Summaries))
		copy(summaries, s.Summaries)
		s.Summaries = summaries
	}
	return s
}
