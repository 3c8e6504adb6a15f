// Package neterr classifies sandbox network failures.
//
// Validation and capacity errors are returned synchronously from script
// calls. Transport and policy errors terminate a resource and are delivered
// as exactly one failure event, carrying the message returned by Message.
package neterr
