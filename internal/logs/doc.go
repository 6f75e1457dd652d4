// Package logs reads the aacnorm log file for `aacnorm logs`: the last N
// lines, then optionally every line appended afterwards.
package logs
