// Package domain defines the core data models and contracts of a linked
// device session. It contains plain types and interfaces only.
package domain
