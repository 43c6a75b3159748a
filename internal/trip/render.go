package trip

// Renderer draws colored routes on a map. An empty slice means no routes are
// ready and the renderer shows its placeholder. Implementations must not retain
// routes beyond the call.
type Renderer interface {
	Render(routes []ColoredRoute) error
}

// RenderState hands the routes of a Ready state to r, and an empty set otherwise.
func RenderState(r Renderer, st State) error {
	if st.Status != StatusReady {
		return r.Render(nil)
	}
	return r.Render(st.Routes)
}
