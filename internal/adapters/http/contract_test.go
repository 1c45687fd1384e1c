package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/anakena-lab/study-viewer/internal/core/domain"
)

func loadContract(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../api/openapi.yaml")
	if err != nil {
		t.Fatalf("load contract: %v", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("contract is not a valid OpenAPI document: %v", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		t.Fatalf("build contract router: %v", err)
	}
	return doc, router
}

func TestContractDeclaresAllEndpoints(t *testing.T) {
	doc, _ := loadContract(t)

	for _, path := range []string{
		"/findings",
		"/studies",
		"/studies/count",
		"/studies/{studyId}/dicoms",
		"/dicoms/{sopId}",
	} {
		item := doc.Paths.Find(path)
		if item == nil || item.Get == nil {
			t.Errorf("contract is missing GET %s", path)
		}
	}
}

func TestResponsesMatchContract(t *testing.T) {
	_, contractRouter := loadContract(t)

	bodyPart := "CHEST"
	browser := &browserFake{
		studies: []domain.Study{{StudyUID: "study-1", CleanReportText: "clear"}},
		count:   23,
		instances: []domain.Instance{{
			StudyUID:         "study-1",
			SeriesUID:        "series-1",
			SOPUID:           "sop-1",
			Modality:         "CR",
			BodyPartExamined: &bodyPart,
			AcquisitionDate:  "20240110",
			AcquisitionTime:  "093000",
		}},
	}
	handler := newTestHandler(browser, &sourceFake{payload: []byte("DICM")})

	targets := []string{
		"/findings",
		"/studies?hallazgo=Consolidation&value=Certainly+True&page=1&page_size=10",
		"/studies/count?hallazgo=Consolidation",
		"/studies/study-1/dicoms",
	}
	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			res := doRequest(t, handler, http.MethodGet, target)
			if res.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", res.Code)
			}

			req := httptest.NewRequest(http.MethodGet, "http://example.test"+target, nil)
			route, pathParams, err := contractRouter.FindRoute(req)
			if err != nil {
				t.Fatalf("contract has no route for %s: %v", target, err)
			}

			input := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: &openapi3filter.RequestValidationInput{
					Request:    req,
					PathParams: pathParams,
					Route:      route,
				},
				Status: res.Code,
				Header: res.Header(),
			}
			input.SetBodyBytes(res.Body.Bytes())
			if err := openapi3filter.ValidateResponse(req.Context(), input); err != nil {
				t.Fatalf("response for %s violates the contract: %v", target, err)
			}
		})
	}
}
