// Package notifier sends best-effort desktop notifications about run
// outcomes. Delivery failures are logged and never affect the run result.
package notifier
