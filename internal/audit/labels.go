package audit

import (
	"time"

	"github.com/paroisse/paroisse/internal/shared"
)

// ActionLabel renders an audit action in French.
func ActionLabel(action string) string {
	switch action {
	case shared.AuditCreate:
		return "Création"
	case shared.AuditUpdate:
		return "Modification"
	case shared.AuditDelete:
		return "Suppression"
	case shared.AuditRestore:
		return "Restauration"
	case shared.AuditPurge:
		return "Purge"
	default:
		return action
	}
}

// EntityLabel renders an audited entity in French.
func EntityLabel(entity string) string {
	switch entity {
	case "paroissien":
		return "Paroissien"
	case "association":
		return "Association"
	case "engagement":
		return "Engagement"
	case "versement":
		return "Versement"
	case "offrande":
		return "Offrande"
	case "user":
		return "Utilisateur"
	default:
		return entity
	}
}

// Actions and Entities feed the journal filter selects.
var (
	Actions  = []string{shared.AuditCreate, shared.AuditUpdate, shared.AuditDelete, shared.AuditRestore, shared.AuditPurge}
	Entities = []string{"paroissien", "association", "engagement", "versement", "offrande", "user"}
)

var entityPaths = map[string]string{
	"paroissien":  "/paroissiens/",
	"association": "/associations/",
	"engagement":  "/finances/engagements/",
	"versement":   "/finances/versements/",
	"offrande":    "/finances/offrandes/",
}

// EntityHref links to the audited record. Deleted records and entities
// without a detail page get no link.
func EntityHref(entity, action, id string) string {
	prefix, ok := entityPaths[entity]
	if !ok || action == shared.AuditDelete || id == "" {
		return ""
	}
	return prefix + id
}

// Line is one labelled audit row ready for display.
type Line struct {
	At       time.Time
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Href     string
}

// Lines labels raw audit rows. Rows without an actor were written by the
// system (jobs, seed).
func Lines(logs []shared.AuditLog) []Line {
	lines := make([]Line, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, newLine(l.At, l.ActorName, l.Action, l.Entity, l.EntityID))
	}
	return lines
}

func newLine(at time.Time, actor, action, entity, entityID string) Line {
	if actor == "" {
		actor = "Système"
	}
	return Line{
		At:       at,
		Actor:    actor,
		Action:   ActionLabel(action),
		Entity:   EntityLabel(entity),
		EntityID: entityID,
		Href:     EntityHref(entity, action, entityID),
	}
}
