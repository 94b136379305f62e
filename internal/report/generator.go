// Package report produces a capacity report over the FSx for ONTAP file
// systems in one or more regions, combining the FSx inventory with
// CloudWatch usage metrics, and delivers it over SMTP or to stdout.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/fsx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

type Options struct {
	Regions      []string
	Format       string // "html" or "text"
	To           string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPPassword string
}

type Generator struct {
	opts Options
	log  *logrus.Logger
	now  func() time.Time
}

func NewGenerator(opts Options, log *logrus.Logger) *Generator {
	return &Generator{opts: opts, log: log, now: time.Now}
}

// FileSystem is one file system's row group in the report.
type FileSystem struct {
	ID             string
	Name           string
	Region         string
	DeploymentType string
	CapacityGB     int64
	UsedCapacity   string
	PercentUsed    string
	Volumes        []Volume
}

// Volume is one volume row in the report.
type Volume struct {
	ID               string
	Name             string
	SVMID            string
	TieringPolicy    string
	VolumeType       string
	SecurityStyle    string
	SnapshotPolicy   string
	CapacityMB       int64
	PercentUsed      string
	FilesCapacity    int64
	FilesPercentUsed string
}

// Run collects every configured region and delivers the rendered report.
// When no mail addresses are configured the report goes to stdout.
func (g *Generator) Run() error {
	var fileSystems []FileSystem
	for _, region := range g.opts.Regions {
		collected, err := g.collect(region)
		if err != nil {
			return errors.Wrapf(err, "collecting region %s", region)
		}
		fileSystems = append(fileSystems, collected...)
	}

	var body string
	var err error
	if g.opts.Format == "text" {
		body = renderText(fileSystems)
	} else {
		body, err = renderHTML(fileSystems)
		if err != nil {
			return err
		}
	}

	if g.opts.To == "" || g.opts.From == "" {
		fmt.Println(body)
		return nil
	}
	return g.email(body)
}

// collect inventories one region's ONTAP file systems and volumes and joins
// in the CloudWatch usage metrics.
func (g *Generator) collect(region string) ([]FileSystem, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating session")
	}
	fsxClient := fsx.New(sess)
	cwClient := cloudwatch.New(sess)

	var systems []*fsx.FileSystem
	err = fsxClient.DescribeFileSystemsPages(&fsx.DescribeFileSystemsInput{},
		func(page *fsx.DescribeFileSystemsOutput, last bool) bool {
			for _, fs := range page.FileSystems {
				if aws.StringValue(fs.FileSystemType) == fsx.FileSystemTypeOntap {
					systems = append(systems, fs)
				}
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "describing file systems")
	}

	var volumes []*fsx.Volume
	err = fsxClient.DescribeVolumesPages(&fsx.DescribeVolumesInput{},
		func(page *fsx.DescribeVolumesOutput, last bool) bool {
			for _, vol := range page.Volumes {
				if vol.OntapConfiguration != nil {
					volumes = append(volumes, vol)
				}
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "describing volumes")
	}
	sort.Slice(volumes, func(i, j int) bool {
		return strings.ToLower(aws.StringValue(volumes[i].Name)) < strings.ToLower(aws.StringValue(volumes[j].Name))
	})

	var queries []*cloudwatch.MetricDataQuery
	for _, fs := range systems {
		id := aws.StringValue(fs.FileSystemId)
		queries = append(queries, metricQuery(metricID(id), "StorageUsed", map[string]string{
			"FileSystemId": id,
			"StorageTier":  "SSD",
			"DataType":     "All",
		}))
	}
	for _, vol := range volumes {
		fsID := aws.StringValue(vol.FileSystemId)
		volID := aws.StringValue(vol.VolumeId)
		for _, metric := range []string{"StorageCapacity", "FilesUsed", "FilesCapacity"} {
			queries = append(queries, metricQuery(metricID(volID)+"_"+metric, metric, map[string]string{
				"FileSystemId": fsID,
				"VolumeId":     volID,
			}))
		}
		for _, dataType := range []string{"User", "Other", "Snapshot"} {
			queries = append(queries, metricQuery(metricID(volID)+"_StorageUsed_"+dataType, "StorageUsed", map[string]string{
				"FileSystemId": fsID,
				"VolumeId":     volID,
				"StorageTier":  "All",
				"DataType":     dataType,
			}))
		}
	}
	values, err := g.metricValues(cwClient, queries)
	if err != nil {
		return nil, err
	}

	var report []FileSystem
	for _, fs := range systems {
		id := aws.StringValue(fs.FileSystemId)
		capacityGB := aws.Int64Value(fs.StorageCapacity)
		entry := FileSystem{
			ID:           id,
			Name:         nameTag(fs.Tags),
			Region:       region,
			CapacityGB:   capacityGB,
			UsedCapacity: "N/A",
			PercentUsed:  "N/A",
		}
		if fs.OntapConfiguration != nil {
			entry.DeploymentType = aws.StringValue(fs.OntapConfiguration.DeploymentType)
		}
		if used, ok := values[metricID(id)]; ok && capacityGB > 0 {
			usedGB := int64(used / 1024 / 1024 / 1024)
			entry.UsedCapacity = fmt.Sprintf("%dGB", usedGB)
			entry.PercentUsed = fmt.Sprintf("%.2f%%", float64(usedGB)/float64(capacityGB)*100)
		}
		for _, vol := range volumes {
			if aws.StringValue(vol.FileSystemId) != id {
				continue
			}
			entry.Volumes = append(entry.Volumes, volumeRow(vol, values))
		}
		report = append(report, entry)
	}
	return report, nil
}

func volumeRow(vol *fsx.Volume, values map[string]float64) Volume {
	id := aws.StringValue(vol.VolumeId)
	cfg := vol.OntapConfiguration
	row := Volume{
		ID:               id,
		Name:             aws.StringValue(vol.Name),
		SVMID:            aws.StringValue(cfg.StorageVirtualMachineId),
		VolumeType:       aws.StringValue(cfg.OntapVolumeType),
		SecurityStyle:    aws.StringValue(cfg.SecurityStyle),
		SnapshotPolicy:   aws.StringValue(cfg.SnapshotPolicy),
		PercentUsed:      "N/A",
		FilesPercentUsed: "N/A",
	}
	if cfg.TieringPolicy != nil {
		row.TieringPolicy = aws.StringValue(cfg.TieringPolicy.Name)
	}

	capacity := values[metricID(id)+"_StorageCapacity"]
	used := values[metricID(id)+"_StorageUsed_User"] +
		values[metricID(id)+"_StorageUsed_Other"] +
		values[metricID(id)+"_StorageUsed_Snapshot"]
	row.CapacityMB = int64(capacity / 1024 / 1024)
	if capacity > 0 {
		row.PercentUsed = fmt.Sprintf("%.2f%%", used/capacity*100)
	}

	filesCapacity := values[metricID(id)+"_FilesCapacity"]
	filesUsed := values[metricID(id)+"_FilesUsed"]
	row.FilesCapacity = int64(filesCapacity)
	if filesCapacity > 0 {
		row.FilesPercentUsed = fmt.Sprintf("%.2f%%", filesUsed/filesCapacity*100)
	}
	return row
}

// metricID derives a CloudWatch query id from a resource id. Query ids must
// start with a letter, so the "fs-"/"fsvol-" prefix becomes "m_".
func metricID(resourceID string) string {
	if i := strings.Index(resourceID, "-"); i >= 0 {
		return "m_" + resourceID[i+1:]
	}
	return "m_" + resourceID
}

func metricQuery(id, metric string, dimensions map[string]string) *cloudwatch.MetricDataQuery {
	var dims []*cloudwatch.Dimension
	for _, name := range []string{"FileSystemId", "VolumeId", "StorageTier", "DataType"} {
		if value, ok := dimensions[name]; ok {
			dims = append(dims, &cloudwatch.Dimension{Name: aws.String(name), Value: aws.String(value)})
		}
	}
	return &cloudwatch.MetricDataQuery{
		Id: aws.String(id),
		MetricStat: &cloudwatch.MetricStat{
			Metric: &cloudwatch.Metric{
				Namespace:  aws.String("AWS/FSx"),
				MetricName: aws.String(metric),
				Dimensions: dims,
			},
			Period: aws.Int64(300),
			Stat:   aws.String("Average"),
		},
		ReturnData: aws.Bool(true),
	}
}

// metricValues fetches queries in batches and returns the most recent value
// per query id. Queries with no datapoints are simply absent from the result.
func (g *Generator) metricValues(cw *cloudwatch.CloudWatch, queries []*cloudwatch.MetricDataQuery) (map[string]float64, error) {
	values := make(map[string]float64)
	end := g.now()
	start := end.Add(-10 * time.Minute)
	for len(queries) > 0 {
		n := len(queries)
		if n > 100 {
			n = 100
		}
		out, err := cw.GetMetricData(&cloudwatch.GetMetricDataInput{
			MetricDataQueries: queries[:n],
			StartTime:         aws.Time(start),
			EndTime:           aws.Time(end),
		})
		if err != nil {
			return nil, errors.Wrap(err, "getting metric data")
		}
		for _, result := range out.MetricDataResults {
			if len(result.Values) > 0 {
				values[aws.StringValue(result.Id)] = aws.Float64Value(result.Values[0])
			}
		}
		queries = queries[n:]
	}
	return values, nil
}

func nameTag(tags []*fsx.Tag) string {
	for _, tag := range tags {
		if aws.StringValue(tag.Key) == "Name" {
			return aws.StringValue(tag.Value)
		}
	}
	return "N/A"
}

func (g *Generator) email(body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", g.opts.From)
	m.SetHeader("To", g.opts.To)
	m.SetHeader("Subject", "FSxN Report")
	contentType := "text/html"
	if g.opts.Format == "text" {
		contentType = "text/plain"
	}
	m.SetBody(contentType, body)

	d := gomail.NewDialer(g.opts.SMTPHost, g.opts.SMTPPort, g.opts.From, g.opts.SMTPPassword)
	return errors.Wrap(d.DialAndSend(m), "sending report email")
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><title>FSxN Report</title></head>
<body>
<table style="border-collapse: collapse;">
{{- range .}}
<tr><td colspan=10><b>ID:</b> {{.ID}}<br>
<b>Name:</b> {{.Name}}<br>
<b>Region:</b> {{.Region}}<br>
<b>Availability:</b> {{.DeploymentType}}<br>
<b>Provisioned Performance Tier Storage:</b> {{.CapacityGB}}GB<br>
<b>Used Performance Tier Storage:</b> {{.UsedCapacity}}<br>
<b>Percent Used Performance Tier:</b> {{.PercentUsed}}<br>
</td></tr>
<tr><td colspan=10><b>Volumes:</b></td></tr>
<tr><th>Name</th><th>SVM</th><th>ID</th><th>Tiering Policy</th><th>Type</th>
<th>Security Type</th><th>Snapshot Policy</th><th>Storage Capacity(MB)</th>
<th>Storage Utilization</th><th>Files Utilization</th></tr>
{{- range .Volumes}}
<tr><td>{{.Name}}</td><td>{{.SVMID}}</td><td>{{.ID}}</td><td>{{.TieringPolicy}}</td>
<td>{{.VolumeType}}</td><td>{{.SecurityStyle}}</td><td>{{.SnapshotPolicy}}</td>
<td align="right">{{.CapacityMB}}</td><td align="right">{{.PercentUsed}}</td>
<td align="right">{{.FilesPercentUsed}}</td></tr>
{{- end}}
{{- end}}
</table>
</body>
</html>
`))

func renderHTML(fileSystems []FileSystem) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, fileSystems); err != nil {
		return "", errors.Wrap(err, "rendering report")
	}
	return buf.String(), nil
}

func renderText(fileSystems []FileSystem) string {
	var b strings.Builder
	for _, fs := range fileSystems {
		fmt.Fprintf(&b, "File System ID: %s\n", fs.ID)
		fmt.Fprintf(&b, "    Name: %s\n", fs.Name)
		fmt.Fprintf(&b, "    Region: %s\n", fs.Region)
		fmt.Fprintf(&b, "    Deployment Type: %s\n", fs.DeploymentType)
		fmt.Fprintf(&b, "    Provisioned Capacity: %dGB\n", fs.CapacityGB)
		fmt.Fprintf(&b, "    Used Capacity: %s\n", fs.UsedCapacity)
		fmt.Fprintf(&b, "    Percent Capacity Used: %s\n", fs.PercentUsed)
		fmt.Fprintf(&b, "    Volumes:\n")
		for _, vol := range fs.Volumes {
			fmt.Fprintf(&b, "        ID: %s\n", vol.ID)
			fmt.Fprintf(&b, "        Name: %s\n", vol.Name)
			fmt.Fprintf(&b, "        SVM: %s\n", vol.SVMID)
			fmt.Fprintf(&b, "        Tiering Policy: %s\n", vol.TieringPolicy)
			fmt.Fprintf(&b, "        Replication Type: %s\n", vol.VolumeType)
			fmt.Fprintf(&b, "        Security Style: %s\n", vol.SecurityStyle)
			fmt.Fprintf(&b, "        Snapshot Policy: %s\n", vol.SnapshotPolicy)
			fmt.Fprintf(&b, "        Capacity: %dM\n", vol.CapacityMB)
			fmt.Fprintf(&b, "        Percent Capacity Used: %s\n", vol.PercentUsed)
			fmt.Fprintf(&b, "        Files Capacity: %d\n", vol.FilesCapacity)
			fmt.Fprintf(&b, "        Percent Files Used: %s\n\n", vol.FilesPercentUsed)
		}
		b.WriteString("\n")
	}
	return b.String()
}
