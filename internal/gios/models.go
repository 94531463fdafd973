package gios

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zerotwo/gios-airsync/internal/models"
)

// stationPayload models one entry of /station/findAll.
type stationPayload struct {
	ID          int64       `json:"id"`
	StationName string      `json:"stationName"`
	GegrLat     flexFloat   `json:"gegrLat"`
	GegrLon     flexFloat   `json:"gegrLon"`
	City        cityPayload `json:"city"`
	Street      *string     `json:"addressStreet"`
}

type cityPayload struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Commune communePayload `json:"commune"`
}

type communePayload struct {
	CommuneName  string `json:"communeName"`
	DistrictName string `json:"districtName"`
	ProvinceName string `json:"provinceName"`
}

// sensorPayload models one entry of /station/sensors/{id}.
type sensorPayload struct {
	ID        int64        `json:"id"`
	StationID int64        `json:"stationId"`
	Param     paramPayload `json:"param"`
}

type paramPayload struct {
	ParamName    string `json:"paramName"`
	ParamFormula string `json:"paramFormula"`
	ParamCode    string `json:"paramCode"`
	IDParam      int64  `json:"idParam"`
}

// dataPayload models /data/getData/{id}.
type dataPayload struct {
	Key    string         `json:"key"`
	Values []valuePayload `json:"values"`
}

type valuePayload struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// flexFloat decodes coordinates that the API sends either as JSON numbers or
// as quoted strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
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
			return fmt.Errorf("parse coordinate %q: %w", s, err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// timestampLayouts lists the naive formats accepted for measurement dates.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses a naive remote timestamp. The result carries the UTC
// location without any offset conversion.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

func (p stationPayload) toModel() models.Station {
	return models.Station{
		ID:        p.ID,
		Name:      strings.TrimSpace(p.StationName),
		City:      strings.TrimSpace(p.City.Name),
		Commune:   p.City.Commune.CommuneName,
		Province:  p.City.Commune.ProvinceName,
		Latitude:  float64(p.GegrLat),
		Longitude: float64(p.GegrLon),
	}
}

func (p sensorPayload) toModel(stationID int64) models.Sensor {
	if p.StationID != 0 {
		stationID = p.StationID
	}
	return models.Sensor{
		ID:        p.ID,
		StationID: stationID,
		ParamCode: p.Param.ParamCode,
		ParamName: p.Param.ParamName,
	}
}
