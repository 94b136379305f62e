package store

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

type s3Store struct {
	s3     *s3.S3
	bucket string
}

// NewS3 returns a Store backed by an S3 bucket in the given region.
func NewS3(bucket, region string) (Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return &s3Store{s3: s3.New(sess), bucket: bucket}, nil
}

func (s *s3Store) get(key string) ([]byte, bool, error) {
	resp, err := s.s3.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "getting s3://%s/%s", s.bucket, key)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading s3://%s/%s", s.bucket, key)
	}
	return data, true, nil
}

func (s *s3Store) GetJSON(key string, v interface{}) (bool, error) {
	data, found, err := s.get(key)
	if err != nil || !found {
		return found, err
	}
	return true, errors.Wrapf(json.Unmarshal(data, v), "decoding s3://%s/%s", s.bucket, key)
}

func (s *s3Store) PutJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding object %q", key)
	}
	_, err = s.s3.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return errors.Wrapf(err, "putting s3://%s/%s", s.bucket, key)
}

func (s *s3Store) GetText(key string) (string, bool, error) {
	data, found, err := s.get(key)
	return string(data), found, err
}
