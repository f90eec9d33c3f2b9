/*
Package domain contains the core domain models for the Stagecoach engine.

It defines the fundamental entities of a team's lifecycle workflow: Stages,
Statuses, Transitions, ComplexityLevels, AutomationRules and WorkItems. This
package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - Stage: a coarse phase of the lifecycle, container for Statuses.
  - Status: a concrete state a WorkItem occupies, nested under one Stage.
  - Transition: an allowed status-to-status edge (wildcards supported).
  - ResolvedConfig: a validated, reference-free workflow definition with a
    precomputed transition table. Immutable once built.
  - WorkItem: the unit of work moving through a workflow; bound to the
    ResolvedConfig version it was created under.
*/
package domain
