package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anakena-lab/study-viewer/internal/config"
	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

type browserFake struct {
	studies   []domain.Study
	count     int
	instances []domain.Instance
	err       error

	gotFilter   domain.StudyFilter
	gotPage     int
	gotPageSize int
	gotStudyUID string
}

func (f *browserFake) ListFindingNames(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{"Atelectasis", "Consolidation"}, nil
}

func (f *browserFake) ListStudies(_ context.Context, filter domain.StudyFilter, page, pageSize int) ([]domain.Study, error) {
	f.gotFilter = filter
	f.gotPage = page
	f.gotPageSize = pageSize
	if f.err != nil {
		return nil, f.err
	}
	return f.studies, nil
}

func (f *browserFake) CountStudies(_ context.Context, filter domain.StudyFilter) (int, error) {
	f.gotFilter = filter
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func (f *browserFake) ListInstances(_ context.Context, studyUID string) ([]domain.Instance, error) {
	f.gotStudyUID = studyUID
	if f.err != nil {
		return nil, f.err
	}
	return f.instances, nil
}

type sourceFake struct {
	payload []byte
	err     error
}

func (f *sourceFake) OpenInstance(context.Context, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

func newTestHandler(browser *browserFake, source *sourceFake) http.Handler {
	cfg := config.Config{DefaultPageSize: 50, CORSAllowOrigin: "*"}
	return NewRouter(cfg, browser, source, nil).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(&browserFake{}, &sourceFake{})
	res := doRequest(t, handler, http.MethodGet, "/healthz")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestListFindingsReturnsOrderedNames(t *testing.T) {
	handler := newTestHandler(&browserFake{}, &sourceFake{})
	res := doRequest(t, handler, http.MethodGet, "/findings")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var names []string
	if err := json.NewDecoder(res.Body).Decode(&names); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(names) != 2 || names[0] != "Atelectasis" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestListStudiesForwardsFilterAndPaging(t *testing.T) {
	browser := &browserFake{studies: []domain.Study{{StudyUID: "study-1", CleanReportText: "clear lungs"}}}
	handler := newTestHandler(browser, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet,
		"/studies?hallazgo=Consolidation&value=Certainly+True&page=3&page_size=10")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	if browser.gotFilter.FindingName != "Consolidation" || browser.gotFilter.FindingValue != "Certainly True" {
		t.Fatalf("unexpected filter: %+v", browser.gotFilter)
	}
	if browser.gotPage != 3 || browser.gotPageSize != 10 {
		t.Fatalf("unexpected paging: page=%d size=%d", browser.gotPage, browser.gotPageSize)
	}

	var studies []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&studies); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(studies) != 1 || studies[0]["studyId"] != "study-1" {
		t.Fatalf("unexpected body: %v", studies)
	}
}

func TestListStudiesDefaultsPaging(t *testing.T) {
	browser := &browserFake{}
	handler := newTestHandler(browser, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet, "/studies")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if browser.gotPage != 1 || browser.gotPageSize != 50 {
		t.Fatalf("unexpected defaults: page=%d size=%d", browser.gotPage, browser.gotPageSize)
	}
}

func TestCountStudiesUsesSameFilter(t *testing.T) {
	browser := &browserFake{count: 23}
	handler := newTestHandler(browser, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet, "/studies/count?hallazgo=Consolidation&value=Certainly+True")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if browser.gotFilter.FindingName != "Consolidation" || browser.gotFilter.FindingValue != "Certainly True" {
		t.Fatalf("unexpected filter: %+v", browser.gotFilter)
	}

	var body map[string]int
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["count"] != 23 {
		t.Fatalf("expected count 23, got %d", body["count"])
	}
}

func TestListStudyDicomsWrapsItems(t *testing.T) {
	bodyPart := "CHEST"
	browser := &browserFake{instances: []domain.Instance{{
		StudyUID:         "study-1",
		SeriesUID:        "series-1",
		SOPUID:           "sop-1",
		Modality:         "CR",
		BodyPartExamined: &bodyPart,
		AcquisitionDate:  "20240110",
		AcquisitionTime:  "093000",
	}}}
	handler := newTestHandler(browser, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet, "/studies/study-1/dicoms")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if browser.gotStudyUID != "study-1" {
		t.Fatalf("unexpected study uid: %s", browser.gotStudyUID)
	}

	var body struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Items))
	}
	item := body.Items[0]
	if item["SOPInstanceUID"] != "sop-1" || item["Modality"] != "CR" || item["BodyPartExamined"] != "CHEST" {
		t.Fatalf("unexpected item: %v", item)
	}
}

func TestListStudyDicomsUnknownStudyIsEmpty(t *testing.T) {
	handler := newTestHandler(&browserFake{}, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet, "/studies/no-such-study/dicoms")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for unknown study, got %d", res.Code)
	}

	var body struct {
		Items []any `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Items) != 0 {
		t.Fatalf("expected empty items, got %v", body.Items)
	}
}

func TestGetDicomStreamsBytesVerbatim(t *testing.T) {
	payload := []byte{0x00, 0x08, 'D', 'I', 'C', 'M', 0xfe, 0xff}
	handler := newTestHandler(&browserFake{}, &sourceFake{payload: payload})

	res := doRequest(t, handler, http.MethodGet, "/dicoms/sop-1")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/dicom" {
		t.Fatalf("expected application/dicom, got %s", ct)
	}
	if !bytes.Equal(res.Body.Bytes(), payload) {
		t.Fatalf("payload was transformed in transit")
	}
}

func TestGetDicomUnknownSOPIs404(t *testing.T) {
	source := &sourceFake{err: domain.WrapError(domain.ErrInstanceNotFound, "open", errors.New("missing"))}
	handler := newTestHandler(&browserFake{}, source)

	res := doRequest(t, handler, http.MethodGet, "/dicoms/no-such-sop")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestStudiesSubtreeUnknownPathIs404(t *testing.T) {
	handler := newTestHandler(&browserFake{}, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet, "/studies/study-1/series")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestBrowseErrorsMapTo500(t *testing.T) {
	handler := newTestHandler(&browserFake{err: errors.New("db down")}, &sourceFake{})

	res := doRequest(t, handler, http.MethodGet, "/studies")
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
}
