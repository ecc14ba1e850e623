package comprehend

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscomprehend "github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/cenkalti/backoff/v5"
	"github.com/klauspost/compress/gzip"

	"conversation-analytics-service/internal/service/entity"
)

// maxOutputLine bounds one JSON line of bulk job output.
const maxOutputLine = 16 << 20

var errJobPending = errors.New("comprehend: job still running")

// DetectBulk uploads lines as a one-document-per-line input file, runs a
// custom entity detection job over it and returns the per-line results.
func (c *Client) DetectBulk(ctx context.Context, name string, lines []string, language string) ([]entity.LineEntities, error) {
	if c.store == nil {
		return nil, errors.New("comprehend: bulk detection requires storage")
	}

	arn, err := c.recognizer(ctx)
	if err != nil {
		return nil, err
	}
	if arn == "" {
		return nil, fmt.Errorf("%w: no trained recognizer named %q", entity.ErrBulkIncomplete, c.cfg.RecognizerName)
	}

	input := path.Join(c.cfg.EntityPrefix, "input", name+".txt")
	if err := c.store.Upload(ctx, input, strings.NewReader(strings.Join(lines, "\n"))); err != nil {
		return nil, fmt.Errorf("comprehend: upload job input: %w", err)
	}

	start := time.Now()
	var job *awscomprehend.StartEntitiesDetectionJobOutput
	err = c.call(ctx, "start_job", func() (err error) {
		job, err = c.api.StartEntitiesDetectionJob(ctx, &awscomprehend.StartEntitiesDetectionJobInput{
			JobName:             aws.String(name),
			EntityRecognizerArn: aws.String(arn),
			DataAccessRoleArn:   aws.String(c.cfg.DataAccessRoleARN),
			LanguageCode:        types.LanguageCode(language),
			InputDataConfig: &types.InputDataConfig{
				S3Uri:       aws.String(c.store.URI(input)),
				InputFormat: types.InputFormatOneDocPerLine,
			},
			OutputDataConfig: &types.OutputDataConfig{
				S3Uri: aws.String(c.store.URI(path.Join(c.cfg.EntityPrefix, "output", name)) + "/"),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	jobID := aws.ToString(job.JobId)
	props, err := c.wait(ctx, jobID)
	status := "error"
	switch {
	case err == nil:
		status = string(props.JobStatus)
	case errors.Is(err, entity.ErrBulkIncomplete):
		status = "incomplete"
	}
	c.metrics.RecordBulkJob(status, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if props.OutputDataConfig == nil || props.OutputDataConfig.S3Uri == nil {
		return nil, fmt.Errorf("comprehend: job %s reported no output location", jobID)
	}
	rc, err := c.store.Open(ctx, aws.ToString(props.OutputDataConfig.S3Uri))
	if err != nil {
		return nil, fmt.Errorf("comprehend: open job %s output: %w", jobID, err)
	}
	defer rc.Close()
	return ParseOutput(rc)
}

// wait polls a job until it completes, fails or runs past cfg.JobTimeout.
func (c *Client) wait(ctx context.Context, jobID string) (*types.EntitiesDetectionJobProperties, error) {
	props, err := backoff.Retry(ctx, func() (*types.EntitiesDetectionJobProperties, error) {
		out, err := c.api.DescribeEntitiesDetectionJob(ctx, &awscomprehend.DescribeEntitiesDetectionJobInput{
			JobId: aws.String(jobID),
		})
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("comprehend: describe job %s: %w", jobID, err))
		}
		p := out.EntitiesDetectionJobProperties
		if p == nil {
			return nil, backoff.Permanent(fmt.Errorf("comprehend: job %s has no properties", jobID))
		}

		switch p.JobStatus {
		case types.JobStatusCompleted:
			return p, nil
		case types.JobStatusSubmitted, types.JobStatusInProgress:
			return nil, errJobPending
		default:
			return nil, backoff.Permanent(fmt.Errorf("%w: job %s ended %s: %s",
				entity.ErrBulkIncomplete, jobID, p.JobStatus, aws.ToString(p.Message)))
		}
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.PollInterval)),
		backoff.WithMaxElapsedTime(c.cfg.JobTimeout),
	)
	if errors.Is(err, errJobPending) {
		return nil, fmt.Errorf("%w: job %s still running after %s", entity.ErrBulkIncomplete, jobID, c.cfg.JobTimeout)
	}
	return props, err
}

// recognizer resolves the ARN of the trained recognizer named in cfg. The
// result is cached once found.
func (c *Client) recognizer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recognizerARN != "" {
		return c.recognizerARN, nil
	}

	var token *string
	for {
		var out *awscomprehend.ListEntityRecognizersOutput
		err := c.call(ctx, "list_recognizers", func() (err error) {
			out, err = c.api.ListEntityRecognizers(ctx, &awscomprehend.ListEntityRecognizersInput{
				Filter:    &types.EntityRecognizerFilter{Status: types.ModelStatusTrained},
				NextToken: token,
			})
			return err
		})
		if err != nil {
			return "", err
		}
		for _, r := range out.EntityRecognizerPropertiesList {
			arn := aws.ToString(r.EntityRecognizerArn)
			if recognizerName(arn) == c.cfg.RecognizerName {
				c.recognizerARN = arn
				return arn, nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		token = out.NextToken
	}
}

// recognizerName extracts the name from
// arn:aws:comprehend:<region>:<account>:entity-recognizer/<name>[/version/<v>].
func recognizerName(arn string) string {
	_, rest, ok := strings.Cut(arn, ":entity-recognizer/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// ParseOutput reads a gzipped tar archive of JSON lines, one object per
// input line, as written by an entity detection job.
func ParseOutput(r io.Reader) ([]entity.LineEntities, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("comprehend: open output archive: %w", err)
	}
	defer gz.Close()

	var results []entity.LineEntities
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("comprehend: read output archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		scanner := bufio.NewScanner(tr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var le entity.LineEntities
			if err := json.Unmarshal(line, &le); err != nil {
				return nil, fmt.Errorf("comprehend: decode %s: %w", hdr.Name, err)
			}
			results = append(results, le)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("comprehend: scan %s: %w", hdr.Name, err)
		}
	}
	return results, nil
}
