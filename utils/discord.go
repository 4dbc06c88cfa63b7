package utils

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// IsNotFound reports whether err is a Discord 404. A deleted message or
// channel is expected drift, not a failure.
func IsNotFound(err error) bool {
	return isRESTStatus(err, http.StatusNotFound)
}

// IsForbidden reports whether err is a Discord 403 (missing permissions).
func IsForbidden(err error) bool {
	return isRESTStatus(err, http.StatusForbidden)
}

func isRESTStatus(err error, status int) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == status
	}
	return false
}
