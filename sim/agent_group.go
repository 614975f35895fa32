package sim

import "fmt"

// AgentGroupListener observes an agent group.
type AgentGroupListener interface {
	OnServiceEnded(g *AgentGroup, c *Call)
	OnCapacityChanged(g *AgentGroup, old int)
}

// AgentGroupListenerFuncs adapts plain functions to AgentGroupListener.
type AgentGroupListenerFuncs struct {
	ServiceEnded    func(g *AgentGroup, c *Call)
	CapacityChanged func(g *AgentGroup, old int)
}

func (f AgentGroupListenerFuncs) OnServiceEnded(g *AgentGroup, c *Call) {
	if f.ServiceEnded != nil {
		f.ServiceEnded(g, c)
	}
}

func (f AgentGroupListenerFuncs) OnCapacityChanged(g *AgentGroup, old int) {
	if f.CapacityChanged != nil {
		f.CapacityChanged(g, old)
	}
}

// AgentGroup is a pool of agents sharing a skill set. When capacity drops
// below the number of busy agents, the extra agents finish their call and
// then leave: Free stays 0 until Busy falls under Capacity.
type AgentGroup struct {
	id        int
	name      string
	capacity  int
	busy      int
	listeners ListenerSet[AgentGroupListener]
}

// NewAgentGroup creates a group with the given initial capacity.
func NewAgentGroup(id int, name string, capacity int) *AgentGroup {
	if capacity < 0 {
		panic(fmt.Sprintf("NewAgentGroup: negative capacity %d for group %d", capacity, id))
	}
	return &AgentGroup{id: id, name: name, capacity: capacity}
}

func (g *AgentGroup) ID() int       { return g.id }
func (g *AgentGroup) Name() string  { return g.name }
func (g *AgentGroup) Capacity() int { return g.capacity }
func (g *AgentGroup) Busy() int     { return g.busy }

// Free returns the number of idle agents.
func (g *AgentGroup) Free() int {
	return max(0, g.capacity-g.busy)
}

// AddListener registers l at the given priority.
func (g *AgentGroup) AddListener(l AgentGroupListener, priority int) {
	g.listeners.Add(l, priority)
}

// SetCapacity changes the number of agents in the group.
func (g *AgentGroup) SetCapacity(n int) {
	if n < 0 {
		panic(fmt.Sprintf("AgentGroup.SetCapacity: negative capacity %d for group %q", n, g.name))
	}
	if n == g.capacity {
		return
	}
	old := g.capacity
	g.capacity = n
	g.listeners.Each(func(l AgentGroupListener) { l.OnCapacityChanged(g, old) })
}

// AddAgents adds delta agents (negative removes). Capacity never goes below 0.
func (g *AgentGroup) AddAgents(delta int) {
	g.SetCapacity(max(0, g.capacity+delta))
}

// BeginService assigns c to a free agent.
func (g *AgentGroup) BeginService(c *Call) {
	if g.Free() == 0 {
		panic(fmt.Sprintf("AgentGroup.BeginService: no free agent in group %q", g.name))
	}
	g.busy++
	c.Group = g.id
}

// EndService frees the agent serving c and notifies listeners.
func (g *AgentGroup) EndService(c *Call) {
	if g.busy == 0 {
		panic(fmt.Sprintf("AgentGroup.EndService: no busy agent in group %q", g.name))
	}
	g.busy--
	c.Group = -1
	g.listeners.Each(func(l AgentGroupListener) { l.OnServiceEnded(g, c) })
}

// Reset idles every agent and restores capacity, without notifying listeners.
func (g *AgentGroup) Reset(capacity int) {
	g.busy = 0
	g.capacity = capacity
}
