// report-export writes the closing reports of a date range to an .xlsx workbook,
// either to a local file or to the GCS bucket named by GCS_BUCKET.
//
// Usage:
//
//	go run ./cmd/report-export -start 20240101 -end 20240131 [-comp C001] [-out reports.xlsx | -gcs]
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/models"
	"github.com/mmdatafocus/closing_backend/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	start := flag.String("start", "", "first close date (YYYYMMDD or YYYY-MM-DD)")
	end := flag.String("end", "", "last close date (YYYYMMDD or YYYY-MM-DD)")
	tenant := flag.String("comp", "", "tenant code; blank exports every tenant")
	out := flag.String("out", "", "local output path")
	toGCS := flag.Bool("gcs", false, "upload to GCS_BUCKET instead of writing a file")
	linkTTL := flag.Duration("link-ttl", 24*time.Hour, "lifetime of the signed download link (-gcs)")
	flag.Parse()

	from, to, err := utils.ParseDateRange(*start, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if *out == "" && !*toGCS {
		*out = fmt.Sprintf("closing_reports_%s_%s.xlsx", from.Format(utils.CompactDateLayout), to.Format(utils.CompactDateLayout))
	}

	logger := config.GetLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	db, err := config.ConnectDatabaseWithRetry(ctx, config.DatabaseConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect database: %v\n", err)
		os.Exit(1)
	}
	defer config.CloseDatabase(db)

	svc := models.NewClosingReportService(db, models.WithLogger(logger))
	reports, err := svc.ListByDateRange(ctx, *tenant, models.NewDate(from), models.NewDate(to))
	if err != nil {
		fmt.Fprintf(os.Stderr, "list reports: %v\n", err)
		os.Exit(1)
	}

	var buf bytes.Buffer
	if err := models.WriteClosingReportsXlsx(reports, &buf); err != nil {
		fmt.Fprintf(os.Stderr, "build workbook: %v\n", err)
		os.Exit(1)
	}

	if *toGCS {
		objectName := fmt.Sprintf("exports/closing_reports_%s_%s.xlsx", from.Format(utils.CompactDateLayout), to.Format(utils.CompactDateLayout))
		url, err := utils.UploadFileToGCS(ctx, objectName, utils.XlsxContentType, &buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload: %v\n", err)
			os.Exit(1)
		}
		fields := logrus.Fields{"reports": len(reports), "url": url}
		if link, err := utils.SignDownload(ctx, objectName, *linkTTL); err != nil {
			logger.WithFields(fields).Warn("uploaded but could not sign a download link: " + err.Error())
		} else {
			fields["download"] = link.URL
			fields["expires_at"] = link.ExpiresAt
		}
		logger.WithFields(fields).Info("export uploaded")
		return
	}

	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	logger.WithFields(logrus.Fields{"reports": len(reports), "file": *out}).Info("export written")
}
