package commands

import (
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ontapmon/internal/report"
)

// NewReportCommand builds the report command, which generates a capacity
// report over the FSx for ONTAP file systems in the selected regions.
func NewReportCommand() *cobra.Command {
	var (
		regions      string
		allRegions   bool
		format       string
		to           string
		from         string
		smtpHost     string
		smtpPort     int
		smtpPassword string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an FSx for ONTAP capacity report",
		Long: `Report lists every FSx for ONTAP file system in the selected regions with
its storage and per-volume utilization, taken from CloudWatch metrics. The
report is emailed when both --to and --from are set, otherwise printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

			opts := report.Options{
				Format:       format,
				To:           to,
				From:         from,
				SMTPHost:     smtpHost,
				SMTPPort:     smtpPort,
				SMTPPassword: smtpPassword,
			}
			switch {
			case regions != "":
				for _, region := range strings.Split(regions, ",") {
					opts.Regions = append(opts.Regions, strings.TrimSpace(region))
				}
			case allRegions:
				resolved, err := availableRegions()
				if err != nil {
					return err
				}
				opts.Regions = resolved
			default:
				region := os.Getenv("AWS_REGION")
				if region == "" {
					return errors.New("no region: set --regions, --all-regions, or AWS_REGION")
				}
				opts.Regions = []string{region}
			}

			return report.NewGenerator(opts, log).Run()
		},
	}

	cmd.Flags().StringVar(&regions, "regions", "", "Comma-separated list of regions to report on")
	cmd.Flags().BoolVar(&allRegions, "all-regions", false, "Report on every region")
	cmd.Flags().StringVar(&format, "format", "html", "Report format (html or text)")
	cmd.Flags().StringVar(&to, "to", "", "Email address to send the report to")
	cmd.Flags().StringVar(&from, "from", "", "Email address to send the report from")
	cmd.Flags().StringVar(&smtpHost, "smtp-host", "", "SMTP server hostname")
	cmd.Flags().IntVar(&smtpPort, "smtp-port", 587, "SMTP server port")
	cmd.Flags().StringVar(&smtpPassword, "smtp-password", "", "SMTP password for the from address")

	return cmd
}

func availableRegions() ([]string, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "creating session")
	}
	out, err := ec2.New(sess).DescribeRegions(&ec2.DescribeRegionsInput{})
	if err != nil {
		return nil, errors.Wrap(err, "describing regions")
	}
	var regions []string
	for _, region := range out.Regions {
		regions = append(regions, aws.StringValue(region.RegionName))
	}
	return regions, nil
}
