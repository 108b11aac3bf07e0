package queuetimes

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ParkGroup is an operator group in the parks document.
type ParkGroup struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Parks []Park `json:"parks"`
}

// Park is a park entry in the parks document.
type Park struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Continent string    `json:"continent"`
	Latitude  FlexFloat `json:"latitude"`
	Longitude FlexFloat `json:"longitude"`
	Timezone  string    `json:"timezone"`
}

// QueueTimes is the per-park wait time document.
// Rides outside any land are listed in Rides.
type QueueTimes struct {
	Lands []Land `json:"lands"`
	Rides []Ride `json:"rides"`
}

// Land is a themed area with its rides.
type Land struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Rides []Ride `json:"rides"`
}

// Ride is one ride observation. IsOpen and WaitTime are nil when the feed
// sends null or omits them.
type Ride struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	IsOpen      *bool  `json:"is_open"`
	WaitTime    *int   `json:"wait_time"`
	LastUpdated string `json:"last_updated"`
}

// Status returns the open flag and wait time. The last result is false when
// either is missing from the feed.
func (r Ride) Status() (isOpen bool, waitTime int, ok bool) {
	if r.IsOpen == nil || r.WaitTime == nil {
		return false, 0, false
	}
	return *r.IsOpen, *r.WaitTime, true
}

// LastUpdatedTime parses LastUpdated as RFC 3339 and returns it in UTC.
// The second result is false when the field is empty or malformed.
func (r Ride) LastUpdatedTime() (time.Time, bool) {
	s := strings.TrimSpace(r.LastUpdated)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// RideCount returns the number of rides in the document, across lands and the top-level list.
func (q *QueueTimes) RideCount() int {
	n := len(q.Rides)
	for i := range q.Lands {
		n += len(q.Lands[i].Rides)
	}
	return n
}

// FlexFloat decodes a JSON number or a numeric string. Null and empty strings decode to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// Float64 returns the value as float64.
func (f FlexFloat) Float64() float64 {
	return float64(f)
}
