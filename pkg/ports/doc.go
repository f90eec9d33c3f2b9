/*
Package ports defines the driven ports (interfaces) for the Stagecoach engine.

These interfaces decouple the core from external implementations: config and
item storage, distributed locking, and the collaborator systems automation
actions reach out to (knowledge graph, notifications, document templates).

# Key Interfaces

  - ConfigSource: loads raw team documents and shared fragments.
  - ItemStore: persists WorkItems with optimistic versioning.
  - DistributedLocker: coordinates item access across replicas.
  - GraphClient, Notifier, DocumentCreator: automation action collaborators.
*/
package ports
