package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validate = validator.New()

func TestCreateServiceRequest_RejectsDuplicatePortCodes(t *testing.T) {
	req := CreateServiceRequest{
		Name:        "ASIA EXPRESS",
		CarrierID:   "c1",
		CarrierName: "Harborline",
		Destinations: []DestinationInput{
			{PortCode: "CNSHA", PortName: "Shanghai", Region: RegionAsia, Position: 0},
			{PortCode: "SGSIN", PortName: "Singapore", Region: RegionAsia, Position: 1},
			{PortCode: "CNSHA", PortName: "Shanghai", Region: RegionAsia, Position: 2},
		},
	}

	err := validate.Struct(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique")
}

func TestCreateServiceRequest_AcceptsDistinctPortCodes(t *testing.T) {
	req := CreateServiceRequest{
		Name:        "ASIA EXPRESS",
		CarrierID:   "c1",
		CarrierName: "Harborline",
		Destinations: []DestinationInput{
			{PortCode: "CNSHA", PortName: "Shanghai", Region: RegionAsia, Position: 0},
			{PortCode: "SGSIN", PortName: "Singapore", Region: RegionAsia, Position: 1},
			{PortCode: "NLRTM", PortName: "Rotterdam", Region: RegionEurope, Position: 2},
		},
	}

	require.NoError(t, validate.Struct(req))
}
