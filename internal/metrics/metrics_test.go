package metrics

import (
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	tests := []struct {
		name      string
		route     string
		method    string
		status    int
		wantRoute string
	}{
		{name: "matched route", route: "/api/visitor/reports", method: "GET", status: 200, wantRoute: "/api/visitor/reports"},
		{name: "server error", route: "/api/visitor/reports", method: "POST", status: 500, wantRoute: "/api/visitor/reports"},
		{name: "unmatched route", route: "", method: "GET", status: 404, wantRoute: "unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := HTTPRequestsTotal.WithLabelValues(tt.wantRoute, tt.method, strconv.Itoa(tt.status))
			before := testutil.ToFloat64(counter)

			RecordHTTPRequest(tt.route, tt.method, tt.status, 3*time.Millisecond)

			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("counter = %v, want %v", got, before+1)
			}
		})
	}
}

func TestRecordMediaUpload(t *testing.T) {
	counter := MediaUploadsTotal.WithLabelValues("cloudinary", "ok")
	before := testutil.ToFloat64(counter)

	RecordMediaUpload("cloudinary", "ok", 120*time.Millisecond)
	RecordMediaUpload("cloudinary", "failed", 80*time.Millisecond)

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("ok uploads = %v, want %v", got, before+1)
	}
}

func TestRecordSubmissionAndDegradedRead(t *testing.T) {
	created := ReportsSubmittedTotal.WithLabelValues("created")
	list := DegradedReadsTotal.WithLabelValues("list")
	beforeCreated := testutil.ToFloat64(created)
	beforeList := testutil.ToFloat64(list)

	RecordSubmission("created")
	RecordSubmission("created")
	RecordDegradedRead("list")

	if got := testutil.ToFloat64(created); got != beforeCreated+2 {
		t.Errorf("created = %v, want %v", got, beforeCreated+2)
	}
	if got := testutil.ToFloat64(list); got != beforeList+1 {
		t.Errorf("degraded list reads = %v, want %v", got, beforeList+1)
	}
}
