/*
Package schema defines the raw, on-disk document model for team workflow
configurations and the error kinds produced while resolving and validating
them.

A Document is what a team author writes in YAML: stage, status, transition,
complexity-level and automation-rule lists, possibly inheriting a base
document via `extends` and splicing shared fragments via `$ref` entries.
Documents are structural only; the resolver expands them and the validator
proves them sound before they become a domain.ResolvedConfig.
*/
package schema
