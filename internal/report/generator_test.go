package report

import (
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/fsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricID(t *testing.T) {
	assert.Equal(t, "m_0123456789abcdef0", metricID("fs-0123456789abcdef0"))
	assert.Equal(t, "m_00fedcba987654321", metricID("fsvol-00fedcba987654321"))
	assert.Equal(t, "m_plain", metricID("plain"))
}

func TestVolumeRow(t *testing.T) {
	vol := &fsx.Volume{
		VolumeId: aws.String("fsvol-abc"),
		Name:     aws.String("data"),
		OntapConfiguration: &fsx.OntapVolumeConfiguration{
			StorageVirtualMachineId: aws.String("svm-1"),
			OntapVolumeType:         aws.String("RW"),
			SecurityStyle:           aws.String("UNIX"),
			SnapshotPolicy:          aws.String("default"),
			TieringPolicy:           &fsx.TieringPolicy{Name: aws.String("AUTO")},
		},
	}
	values := map[string]float64{
		"m_abc_StorageCapacity":      100 * 1024 * 1024,
		"m_abc_StorageUsed_User":     30 * 1024 * 1024,
		"m_abc_StorageUsed_Other":    10 * 1024 * 1024,
		"m_abc_StorageUsed_Snapshot": 10 * 1024 * 1024,
		"m_abc_FilesCapacity":        1000,
		"m_abc_FilesUsed":            250,
	}

	row := volumeRow(vol, values)
	assert.Equal(t, "data", row.Name)
	assert.Equal(t, "svm-1", row.SVMID)
	assert.Equal(t, "AUTO", row.TieringPolicy)
	assert.Equal(t, int64(100), row.CapacityMB)
	assert.Equal(t, "50.00%", row.PercentUsed)
	assert.Equal(t, int64(1000), row.FilesCapacity)
	assert.Equal(t, "25.00%", row.FilesPercentUsed)
}

func TestVolumeRowWithoutMetrics(t *testing.T) {
	vol := &fsx.Volume{
		VolumeId:           aws.String("fsvol-abc"),
		Name:               aws.String("data"),
		OntapConfiguration: &fsx.OntapVolumeConfiguration{},
	}

	row := volumeRow(vol, map[string]float64{})
	assert.Equal(t, "N/A", row.PercentUsed)
	assert.Equal(t, "N/A", row.FilesPercentUsed)
	assert.Equal(t, int64(0), row.CapacityMB)
}

func reportFixture() []FileSystem {
	return []FileSystem{{
		ID:             "fs-0123456789abcdef0",
		Name:           "prod-fsx",
		Region:         "us-east-1",
		DeploymentType: "MULTI_AZ_1",
		CapacityGB:     1024,
		UsedCapacity:   "512.00GB",
		PercentUsed:    "50.00%",
		Volumes: []Volume{{
			ID:               "fsvol-00fedcba987654321",
			Name:             "data",
			SVMID:            "svm-1",
			TieringPolicy:    "AUTO",
			VolumeType:       "RW",
			SecurityStyle:    "UNIX",
			SnapshotPolicy:   "default",
			CapacityMB:       102400,
			PercentUsed:      "42.00%",
			FilesCapacity:    21251126,
			FilesPercentUsed: "0.10%",
		}},
	}}
}

func TestRenderText(t *testing.T) {
	out := renderText(reportFixture())
	assert.Contains(t, out, "File System ID: fs-0123456789abcdef0")
	assert.Contains(t, out, "    Name: prod-fsx\n")
	assert.Contains(t, out, "    Provisioned Capacity: 1024GB\n")
	assert.Contains(t, out, "        ID: fsvol-00fedcba987654321\n")
	assert.Contains(t, out, "        Capacity: 102400M\n")
	assert.Contains(t, out, "        Percent Files Used: 0.10%\n")
}

func TestRenderHTML(t *testing.T) {
	out, err := renderHTML(reportFixture())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "<"))
	assert.Contains(t, out, "prod-fsx")
	assert.Contains(t, out, "fsvol-00fedcba987654321")
	assert.Contains(t, out, "42.00%")
}

func TestNameTag(t *testing.T) {
	tags := []*fsx.Tag{
		{Key: aws.String("env"), Value: aws.String("prod")},
		{Key: aws.String("Name"), Value: aws.String("prod-fsx")},
	}
	assert.Equal(t, "prod-fsx", nameTag(tags))
	assert.Equal(t, "N/A", nameTag(nil))
}
