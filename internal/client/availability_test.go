package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourneighborhoodchef/servermon/internal/monitor"
)

const availabilityBody = `[
  {
    "fqn": "24ska01.ram-64g-noecc-2133.softraid-2x450nvme",
    "planCode": "24ska01",
    "memory": "ram-64g-noecc-2133",
    "storage": "softraid-2x450nvme",
    "datacenters": [
      {"datacenter": "gra", "availability": "unavailable"},
      {"datacenter": "rbx", "availability": "1H-high"}
    ]
  },
  {
    "fqn": "24sk20.ram-32g.softraid-2x2000sa",
    "planCode": "24sk20",
    "memory": "ram-32g",
    "storage": "softraid-2x2000sa",
    "datacenters": [{"datacenter": "bhs", "availability": "72H"}]
  }
]`

func TestParseAvailabilities(t *testing.T) {
	snap, err := parseAvailabilities([]byte(availabilityBody), "24ska01")
	require.NoError(t, err)
	require.Len(t, snap, 1)

	got := monitor.Normalize(snap)
	assert.Equal(t, map[string]string{
		"gra|24ska01.ram-64g-noecc-2133.softraid-2x450nvme": "unavailable",
		"rbx|24ska01.ram-64g-noecc-2133.softraid-2x450nvme": "1H-high",
	}, got)

	readings := monitor.Readings(snap)
	require.NotNil(t, readings[0].Config)
	assert.Equal(t, "ram-64g-noecc-2133 + softraid-2x450nvme", readings[0].Config.Display())
}

func TestParseAvailabilities_Empty(t *testing.T) {
	snap, err := parseAvailabilities([]byte(`[]`), "24ska01")
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestParseAvailabilities_Invalid(t *testing.T) {
	_, err := parseAvailabilities([]byte(`<html>blocked</html>`), "24ska01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestParseCatalog(t *testing.T) {
	body := `{
	  "plans": [
	    {"planCode": "24ska01", "invoiceName": "KS-A | Intel i7-6700k", "product": "24ska01"},
	    {"planCode": "", "invoiceName": "ignored"},
	    {"planCode": "24sk99", "invoiceName": "KS-99", "product": "missing"}
	  ],
	  "products": [
	    {
	      "name": "24ska01",
	      "blobs": {"technical": {
	        "server": {"cpu": {"brand": "Intel", "model": "i7-6700k"}},
	        "memory": {"size": 64},
	        "storage": {"disks": [{"number": 2, "capacity": 450, "technology": "NVMe"}]},
	        "bandwidth": {"level": 1000}
	      }}
	    }
	  ]
	}`

	offerings, err := parseCatalog([]byte(body))
	require.NoError(t, err)
	require.Len(t, offerings, 2)

	assert.Equal(t, monitor.Offering{
		ProductCode: "24ska01",
		Name:        "KS-A | Intel i7-6700k",
		CPU:         "Intel i7-6700k",
		Memory:      "64GB",
		Storage:     "2x450GB NVMe",
		Bandwidth:   "1000Mbps",
	}, offerings[0])
	assert.Equal(t, monitor.Offering{ProductCode: "24sk99", Name: "KS-99"}, offerings[1])
}

func TestProxyRing(t *testing.T) {
	ring := NewProxyRing([]string{"http://a:1", "http://b:2"})
	assert.Equal(t, "http://a:1", ring.Next())
	assert.Equal(t, "http://b:2", ring.Next())
	assert.Equal(t, "http://a:1", ring.Next())

	assert.Equal(t, 1, ring.Remove("http://a:1"))
	assert.Equal(t, "http://b:2", ring.Next())
	assert.Equal(t, 0, ring.Remove("http://b:2"))
	assert.Equal(t, "", ring.Next())

	var nilRing *ProxyRing
	assert.Equal(t, "", nilRing.Next())
}
