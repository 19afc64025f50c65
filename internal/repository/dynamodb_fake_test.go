package repository

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type fakeDynamo struct {
	getOuts      []*dynamodb.GetItemOutput
	getErr       error
	putErr       error
	deleteErr    error
	delOut       *dynamodb.DeleteItemOutput
	queryOuts    []*dynamodb.QueryOutput
	queryErr     error
	txErrs       []error
	getCalls     int
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastDelInput *dynamodb.DeleteItemInput
	queryInputs  []*dynamodb.QueryInput
	txInputs     []*dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	idx := f.getCalls
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.getOuts) == 0 {
		return &dynamodb.GetItemOutput{}, nil
	}
	if idx >= len(f.getOuts) {
		idx = len(f.getOuts) - 1
	}
	return f.getOuts[idx], nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelInput = in
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if f.delOut != nil {
		return f.delOut, nil
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	idx := len(f.queryInputs)
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if idx >= len(f.queryOuts) {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOuts[idx], nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	idx := len(f.txInputs)
	f.txInputs = append(f.txInputs, in)
	if idx < len(f.txErrs) && f.txErrs[idx] != nil {
		return nil, f.txErrs[idx]
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}
