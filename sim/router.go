package sim

// Router is the dispatcher the decision components hand calls to.
type Router interface {
	// CanServe reports whether group may ever serve calls of the given type.
	CanServe(group, callType int) bool
	// NewContact submits a call to routing as if it had just arrived.
	NewContact(c *Call)
	// ExitDequeued records that a call removed from a queue the router does
	// not own (a virtual queue) has left it.
	ExitDequeued(e *QueuedCall)
	AgentGroup(i int) *AgentGroup
	NumAgentGroups() int
}

// WaitingTimePredictor estimates how long a call would wait in a queue.
type WaitingTimePredictor interface {
	Predict(c *Call, q *WaitingQueue) float64
}

// ContactFactory creates calls with their random attributes already drawn.
type ContactFactory interface {
	NewCall(callType int) *Call
}
