// Package sim provides the discrete-event kernel and data model shared by the
// contact-center decision components.
//
// # Reading Guide
//
// Start with these files:
//   - call.go: Call lifecycle data, pre-drawn decision uniforms, routing memo
//   - event.go: Scheduler contract and the Simulator event loop
//   - queue.go, agent_group.go: waiting queues and agent pools with
//     priority-ordered listeners (listener.go)
//
// # Architecture
//
// The sim package defines the collaborator contracts; the decision logic
// lives in sub-packages:
//   - sim/routing/: routing stages, conditional cases and rank vectors
//   - sim/transfer/: primary to secondary agent handoff
//   - sim/virtualqueue/: callback offers and waiting-time predictors
//   - sim/dialer/: outbound call type selection under overlapping limits
//   - sim/staffing/: shift schedules driving agent-group capacity
//   - sim/callcenter/: model configuration, reference router and replications
//   - sim/trace/: decision trace recording
//
// Execution is single-threaded. Nothing in this tree blocks: a component
// that has to wait schedules an event on the Scheduler.
package sim
