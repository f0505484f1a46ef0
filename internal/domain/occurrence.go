package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OccurrenceStatus enumerates lifecycle states for occurrences.
type OccurrenceStatus string

const (
	OccurrenceStatusOpen       OccurrenceStatus = "OPEN"
	OccurrenceStatusInProgress OccurrenceStatus = "IN_PROGRESS"
	OccurrenceStatusClosed     OccurrenceStatus = "CLOSED"
)

// Valid reports whether s is one of the known statuses.
func (s OccurrenceStatus) Valid() bool {
	switch s {
	case OccurrenceStatusOpen, OccurrenceStatusInProgress, OccurrenceStatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether an occurrence may move from one status to another.
// Only OPEN -> IN_PROGRESS and IN_PROGRESS -> CLOSED are legal.
func CanTransition(from, to OccurrenceStatus) bool {
	switch from {
	case OccurrenceStatusOpen:
		return to == OccurrenceStatusInProgress
	case OccurrenceStatusInProgress:
		return to == OccurrenceStatusClosed
	}
	return false
}

// Occurrence is a citizen-submitted civic complaint.
type Occurrence struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      OccurrenceStatus `json:"status"`
	Feedback    *string          `json:"feedback,omitempty"`
	DateTime    time.Time        `json:"dateTime"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Location    *Location        `json:"location"`
	Images      []Image          `json:"images"`
	UserID      string           `json:"userId"`
	EmployeeID  *string          `json:"employeeId,omitempty"`
}

// CanRemove reports whether the owning citizen is offered the delete action.
func CanRemove(o *Occurrence) bool {
	return o != nil && o.Status != OccurrenceStatusClosed
}

// Image references an attachment stored by the backend.
type Image struct {
	ID   string `json:"id,omitempty"`
	Path string `json:"path"`
}

// ErrInvalidLocation is returned when a coordinate pair cannot be decoded.
var ErrInvalidLocation = errors.New("invalid location")

// Location is a latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the location the way the create endpoint expects it.
func (l Location) String() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + " " + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// ParseLocation accepts "lat lon" or "lat,lon".
func ParseLocation(s string) (Location, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(fields) != 2 {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: latitude %q", ErrInvalidLocation, fields[0])
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Location{}, fmt.Errorf("%w: longitude %q", ErrInvalidLocation, fields[1])
	}
	return Location{Latitude: lat, Longitude: lon}, nil
}

type locationWire struct {
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	Lon         *float64  `json:"lon"`
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// UnmarshalJSON accepts the shapes the backend has been seen to return:
// {latitude, longitude}, {lat, lng|lon}, a GeoJSON point, or a "lat lon" string.
func (l *Location) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
		}
		parsed, err := ParseLocation(s)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}

	var w locationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	switch {
	case w.Latitude != nil && w.Longitude != nil:
		*l = Location{Latitude: *w.Latitude, Longitude: *w.Longitude}
	case w.Lat != nil && w.Lng != nil:
		*l = Location{Latitude: *w.Lat, Longitude: *w.Lng}
	case w.Lat != nil && w.Lon != nil:
		*l = Location{Latitude: *w.Lat, Longitude: *w.Lon}
	case strings.EqualFold(w.Type, "Point") && len(w.Coordinates) == 2:
		// GeoJSON orders coordinates as [lon, lat].
		*l = Location{Latitude: w.Coordinates[1], Longitude: w.Coordinates[0]}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLocation, string(data))
	}
	return nil
}
