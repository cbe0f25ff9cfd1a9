// Package pabt provides a Plan node that achieves goals over the blackboard
// by Planning and Acting with go-pabt (PA-BT).
//
// Architecture:
//
//   - A Planner holds planning actions: preconditions, written as expr
//     expressions over one blackboard key each, effects, and a factory for
//     the node that performs the action.
//   - State implements go-pabt's IState, backed by the blackboard scope of
//     the Plan node.
//   - The Plan node builds a plan for its goal on its first tick and ticks
//     the plan's go-behaviortree root on every tick until it completes.
//
// Usage:
//
//	planner := pabt.NewPlanner(cache)
//	_ = planner.Add(pabt.ActionSpec{
//	    Name:          "EnterRoom",
//	    Preconditions: map[string]string{"door": "value == 'open'"},
//	    Effects:       map[string]any{"inside": true},
//	    NewNode:       newEnterRoom,
//	})
//	_ = pabt.Register(reg, planner)
//
// and in a tree description:
//
//	<Plan goal="inside: value == true"/>
//
// Expressions see the value of their key as "value"; a missing key is nil.
// Several goal conditions are separated by ";" and must all hold.
package pabt
