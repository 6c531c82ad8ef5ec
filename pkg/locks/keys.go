package locks

import (
	"github.com/google/uuid"
)

// PeerLinkKey guards the unordered pair {a, b} for one peer relationship type.
func PeerLinkKey(serverName, relationshipName string, a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return serverName + ":peer:" + relationshipName + ":" + x + ":" + y
}

// DirectedLinkKey guards the directed pair from -> to for one relationship
// type: supporting links, external reference attachments and GovernedBy.
func DirectedLinkKey(serverName, relationshipName string, from, to uuid.UUID) string {
	return serverName + ":directed:" + relationshipName + ":" + from.String() + ":" + to.String()
}

// ZoneParentKey guards the parent slot of a zone.
func ZoneParentKey(serverName string, child uuid.UUID) string {
	return serverName + ":zone-parent:" + child.String()
}

// DocumentKey guards a document identifier within one definition type.
func DocumentKey(serverName, typeName, documentIdentifier string) string {
	return serverName + ":document:" + typeName + ":" + documentIdentifier
}

// QualifiedNameKey guards a qualified name within one entity type.
func QualifiedNameKey(serverName, typeName, qualifiedName string) string {
	return serverName + ":qualified-name:" + typeName + ":" + qualifiedName
}
