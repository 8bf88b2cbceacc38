package mongodb

import (
	"fmt"
	"strings"

	serrors "go.pilab.hu/stats/errors"
)

// maxNamespaceLength is the MongoDB limit for database names.
const maxNamespaceLength = 63

// checkNamespace rejects names MongoDB cannot use as a database name.
func checkNamespace(namespace string) error {
	switch {
	case namespace == "":
		return serrors.NewValidation("namespace", "must not be empty")
	case len(namespace) > maxNamespaceLength:
		return serrors.NewValidation("namespace", fmt.Sprintf("must be at most %d characters", maxNamespaceLength))
	case strings.ContainsAny(namespace, `/\. "$*<>:|?`+"\x00"):
		return serrors.NewValidation("namespace", "contains characters not allowed in a namespace")
	}
	return nil
}
