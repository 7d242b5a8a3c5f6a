package handler

var CopyResponseHeaders = copyResponseHeaders
