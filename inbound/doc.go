// Package inbound serves hub verification callbacks over HTTP.
//
// Rejections and failures never carry a body so hubs learn nothing beyond
// the status code.
package inbound
