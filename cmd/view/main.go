package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/anakena-lab/study-viewer/client"
	"github.com/anakena-lab/study-viewer/internal/core/domain"
	"github.com/anakena-lab/study-viewer/internal/observability/logging"
)

// fileRenderer is the CLI's display surface: a displayed instance is
// written to the output directory as a .dcm file.
type fileRenderer struct {
	outDir string

	mu     sync.Mutex
	staged map[string][]byte
}

func newFileRenderer(outDir string) *fileRenderer {
	return &fileRenderer{outDir: outDir, staged: map[string][]byte{}}
}

func (r *fileRenderer) Register(imageID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged[imageID] = data
	return nil
}

func (r *fileRenderer) Display(imageID string) error {
	r.mu.Lock()
	data, ok := r.staged[imageID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("image %s was never registered", imageID)
	}

	path := filepath.Join(r.outDir, imageID+".dcm")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write displayed instance: %w", err)
	}
	fmt.Printf("displayed %s (%d bytes)\n", path, len(data))
	return nil
}

func (r *fileRenderer) Release(imageID string) {
	r.mu.Lock()
	delete(r.staged, imageID)
	r.mu.Unlock()
	_ = os.Remove(filepath.Join(r.outDir, imageID+".dcm"))
}

func main() {
	var (
		baseURL  = flag.String("api", "http://localhost:8080", "study API base URL")
		finding  = flag.String("hallazgo", "", "filter studies by finding name")
		value    = flag.String("value", "", "filter studies by certainty value")
		page     = flag.Int("page", 1, "1-indexed page of studies")
		pageSize = flag.Int("page-size", 20, "studies per page")
		studyUID = flag.String("study", "", "list the DICOM instances of one study")
		sopUID   = flag.String("show", "", "fetch, validate and display one SOP instance")
		outDir   = flag.String("out", ".", "directory for displayed instances")
	)
	flag.Parse()
	logging.Setup("study-viewer-cli", "warn")

	ctx := context.Background()
	api := client.New(*baseURL)

	switch {
	case *sopUID != "":
		viewer := client.NewViewer(api, newFileRenderer(*outDir))
		defer viewer.Close()
		if err := viewer.Show(ctx, *sopUID); err != nil {
			log.Fatalf("show %s: %v", *sopUID, err)
		}

	case *studyUID != "":
		instances, err := api.ListStudyInstances(ctx, *studyUID)
		if err != nil {
			log.Fatalf("list instances: %v", err)
		}
		for _, inst := range instances {
			bodyPart := "-"
			if inst.BodyPartExamined != nil {
				bodyPart = *inst.BodyPartExamined
			}
			fmt.Printf("%s  %s  %s  %s %s\n",
				inst.SOPUID, inst.Modality, bodyPart, inst.AcquisitionDate, inst.AcquisitionTime)
		}

	case *finding != "" || *value != "":
		filter := domain.StudyFilter{FindingName: *finding, FindingValue: *value}
		count, err := api.CountStudies(ctx, filter)
		if err != nil {
			log.Fatalf("count studies: %v", err)
		}
		studies, err := api.ListStudies(ctx, filter, *page, *pageSize)
		if err != nil {
			log.Fatalf("list studies: %v", err)
		}
		fmt.Printf("%d matching studies, page %d:\n", count, *page)
		for _, study := range studies {
			fmt.Println(study.StudyUID)
		}

	default:
		names, err := api.ListFindingNames(ctx)
		if err != nil {
			log.Fatalf("list findings: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	}
}
