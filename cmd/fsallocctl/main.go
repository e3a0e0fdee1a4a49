// fsallocctl drives the fsalloc paging allocator from the command line:
// demo and stress workloads against a real backing store, with counter
// reporting.
package main

func main() {
	execute()
}
