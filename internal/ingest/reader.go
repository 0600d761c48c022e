// Package ingest implements the save pipeline: read model inference
// output from the data lake, persist forecast records, project the
// nearest upcoming forecast per location into the distributed cache,
// and flag saved selections whose tracked metrics moved.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

// S3API is the slice of the S3 client the reader needs.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Reader lists and parses batch inference output files under a data
// lake prefix. Files are CSV with a header row, optionally gzipped.
type Reader struct {
	client S3API
	bucket string
}

// NewReader creates a reader over the given data lake bucket.
func NewReader(client S3API, bucket string) *Reader {
	return &Reader{client: client, bucket: bucket}
}

// Row is one parsed CSV row keyed by header column.
type Row map[string]string

// ListBatchFiles returns the inference output keys (".out" or
// ".out.gz") under the prefix, sorted for deterministic processing
// order.
func (r *Reader) ListBatchFiles(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", r.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, ".out") || strings.HasSuffix(key, ".out.gz") {
				keys = append(keys, key)
			}
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// ReadRows fetches one inference file and parses its CSV rows. Gzipped
// files are decompressed transparently based on the key suffix.
func (r *Reader) ReadRows(ctx context.Context, key string) ([]Row, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching s3://%s/%s: %w", r.bucket, key, err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if strings.HasSuffix(key, ".gz") {
		gz, err := gzip.NewReader(out.Body)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", key, err)
		}
		defer gz.Close()
		body = gz
	}

	return parseCSV(body)
}

// parseCSV reads header-keyed rows. Ragged rows are tolerated (short
// rows simply lack the trailing columns) so one malformed line cannot
// sink a whole file.
func parseCSV(body io.Reader) ([]Row, error) {
	cr := csv.NewReader(body)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row: %w", err)
		}

		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
